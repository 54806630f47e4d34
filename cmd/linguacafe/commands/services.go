package commands

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/linguacafe/linguacafe/cmd/linguacafe/internal/config"
	"github.com/linguacafe/linguacafe/pkg/history"
	"github.com/linguacafe/linguacafe/pkg/live"
	"github.com/linguacafe/linguacafe/pkg/tutor"
)

// services bundles the backends a conversation needs, built once from
// config.
type services struct {
	dialer    live.Dialer
	liveModel string
	voice     string

	scenarios  tutor.ScenarioGenerator
	grammar    tutor.GrammarChecker
	pronounce  tutor.PronunciationScorer
	synthesize tutor.Synthesizer
}

// buildServices wires the tutoring backends per config. The live
// session is always Gemini; grammar and scenario generation follow the
// configured backend.
func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("no Gemini API key configured (set gemini_api_key or GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	gem := &tutor.Gemini{Client: client, Voice: cfg.Voice}
	svc := &services{
		dialer:     &live.GeminiDialer{Client: client},
		liveModel:  cfg.LiveModel,
		voice:      cfg.Voice,
		scenarios:  gem,
		grammar:    gem,
		pronounce:  gem,
		synthesize: gem,
	}
	if svc.liveModel == "" {
		svc.liveModel = live.DefaultLiveModel
	}

	if cfg.Backend == "openai" {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("backend is openai but no OpenAI API key configured")
		}
		oc := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		oa := &tutor.OpenAI{Client: &oc}
		svc.scenarios = oa
		svc.grammar = oa
	}
	return svc, nil
}

// openHistory opens the conversation archive at the configured path.
func openHistory(cfg *config.Config) (*history.Store, error) {
	store, err := history.Open(history.Options{Dir: cfg.HistoryDir})
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}
