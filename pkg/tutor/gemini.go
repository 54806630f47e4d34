package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
	"github.com/linguacafe/linguacafe/pkg/chat"
)

// Default models for the Gemini-backed services.
const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"
)

var (
	_ GrammarChecker      = (*Gemini)(nil)
	_ PronunciationScorer = (*Gemini)(nil)
	_ Synthesizer         = (*Gemini)(nil)
	_ ScenarioGenerator   = (*Gemini)(nil)
)

// Gemini implements all tutoring services against the Gemini API.
type Gemini struct {
	Client *genai.Client

	// Model is the text/analysis model. Empty means DefaultGeminiModel.
	Model string

	// TTSModel is the synthesis model. Empty means DefaultGeminiTTSModel.
	TTSModel string

	// Voice is the synthesis voice name. Optional.
	Voice string
}

func (g *Gemini) model() string {
	if g.Model != "" {
		return g.Model
	}
	return DefaultGeminiModel
}

func (g *Gemini) ttsModel() string {
	if g.TTSModel != "" {
		return g.TTSModel
	}
	return DefaultGeminiTTSModel
}

// CheckGrammar asks the model for a structured verdict on one
// completed learner utterance.
func (g *Gemini) CheckGrammar(ctx context.Context, req GrammarRequest) (*chat.GrammarVerdict, error) {
	prompt := fmt.Sprintf(
		"You are a %s teacher. A learner said the following during a roleplay conversation.\n"+
			"Scenario: %s\n"+
			"Utterance: %q\n"+
			"Judge the utterance as spoken conversational %s. Minor informality is fine; "+
			"flag real grammar, agreement, and word-choice errors.",
		req.Language, req.Context, req.Text, req.Language,
	)
	raw, err := g.invokeJSON(ctx, []*genai.Part{genai.NewPartFromText(prompt)}, grammarSchema)
	if err != nil {
		return nil, fmt.Errorf("tutor: check grammar: %w", err)
	}
	var v chat.GrammarVerdict
	if err := unmarshalJSON(raw, &v); err != nil {
		return nil, fmt.Errorf("tutor: check grammar: %w", err)
	}
	return &v, nil
}

// ScorePronunciation submits the recorded WAV payload for a structured
// pronunciation assessment.
func (g *Gemini) ScorePronunciation(ctx context.Context, language string, wavPayload []byte) (*chat.Pronunciation, error) {
	prompt := fmt.Sprintf(
		"The attached recording is a language learner speaking %s. "+
			"Assess the pronunciation only, not the grammar. "+
			"Score 0-100 where 100 is native-like.",
		language,
	)
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(wavPayload, "audio/wav"),
	}
	raw, err := g.invokeJSON(ctx, parts, pronunciationSchema)
	if err != nil {
		return nil, fmt.Errorf("tutor: score pronunciation: %w", err)
	}
	var p chat.Pronunciation
	if err := unmarshalJSON(raw, &p); err != nil {
		return nil, fmt.Errorf("tutor: score pronunciation: %w", err)
	}
	if p.Score < 0 {
		p.Score = 0
	}
	if p.Score > 100 {
		p.Score = 100
	}
	return &p, nil
}

// GenerateScenario produces a new roleplay scenario.
func (g *Gemini) GenerateScenario(ctx context.Context, req ScenarioRequest) (*Scenario, error) {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Create a roleplay scenario for practicing spoken %s with a learner named %s. "+
			"Everyday situations only: shops, travel, small talk, appointments. "+
			"The system_prompt must instruct the partner to speak only %s, stay in character, "+
			"and keep sentences short. The opening_line must be in %s.",
		req.Language, req.LearnerName, req.Language, req.Language,
	)
	if req.Avoid != "" {
		fmt.Fprintf(&b, "\nDo not repeat anything like the previous scenario: %s", req.Avoid)
	}
	raw, err := g.invokeJSON(ctx, []*genai.Part{genai.NewPartFromText(b.String())}, scenarioSchema)
	if err != nil {
		return nil, fmt.Errorf("tutor: generate scenario: %w", err)
	}
	var sc Scenario
	if err := unmarshalJSON(raw, &sc); err != nil {
		return nil, fmt.Errorf("tutor: generate scenario: %w", err)
	}
	return &sc, nil
}

// Synthesize renders text as speech audio at the session output rate.
func (g *Gemini) Synthesize(ctx context.Context, text string) (pcm.Frame, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
	}
	if g.Voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.Voice},
			},
		}
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := g.Client.Models.GenerateContent(ctx, g.ttsModel(), contents, cfg)
	if err != nil {
		return pcm.Frame{}, fmt.Errorf("tutor: synthesize: %w", unwrapAPIError(err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return pcm.Frame{}, errors.New("tutor: synthesize: no candidates")
	}
	var audio []byte
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil {
			audio = append(audio, p.InlineData.Data...)
		}
	}
	if len(audio) == 0 {
		return pcm.Frame{}, errors.New("tutor: synthesize: no audio in response")
	}
	return pcm.Frame{Format: pcm.L16Mono24K, Data: audio}, nil
}

// invokeJSON runs one structured-output generation and returns the raw
// JSON text of the first candidate.
func (g *Gemini) invokeJSON(ctx context.Context, parts []*genai.Part, schema *jsonschema.Schema) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   convSchema(schema),
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := g.Client.Models.GenerateContent(ctx, g.model(), contents, cfg)
	if err != nil {
		return nil, unwrapAPIError(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("no candidates")
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
		return nil, fmt.Errorf("unexpected finish reason: %s", cand.FinishReason)
	}
	if cand.Content == nil {
		return nil, errors.New("no content")
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return []byte(sb.String()), nil
}

func unwrapAPIError(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		return e.Unwrap()
	}
	return err
}
