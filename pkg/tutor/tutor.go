// Package tutor provides the language-tutoring services the chat
// pipeline calls out to: grammar validation, pronunciation scoring,
// speech synthesis, and roleplay scenario generation.
//
// All services are opaque asynchronous calls into a generative model.
// Annotation failures are expected to degrade silently at the call
// site: no verdict is attached and the conversation continues.
package tutor

import (
	"context"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
	"github.com/linguacafe/linguacafe/pkg/chat"
)

// GrammarRequest describes one grammar validation call.
type GrammarRequest struct {
	// Language is the display name of the target language.
	Language string

	// Text is the learner's completed utterance.
	Text string

	// Context is a short description of the surrounding scenario, used
	// to judge register and word choice.
	Context string
}

// GrammarChecker validates a completed user utterance.
type GrammarChecker interface {
	CheckGrammar(ctx context.Context, req GrammarRequest) (*chat.GrammarVerdict, error)
}

// PronunciationScorer scores a recorded utterance from its WAV payload.
type PronunciationScorer interface {
	ScorePronunciation(ctx context.Context, language string, wavPayload []byte) (*chat.Pronunciation, error)
}

// Synthesizer produces speech audio for plain text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (pcm.Frame, error)
}

// ScenarioRequest describes one scenario generation call.
type ScenarioRequest struct {
	// Language is the display name of the target language.
	Language string

	// LearnerName is the learner's display name, woven into the
	// scenario.
	LearnerName string

	// Avoid describes the previous scenario so regeneration produces
	// something different. Empty on first generation.
	Avoid string
}

// ScenarioGenerator produces roleplay scenarios.
type ScenarioGenerator interface {
	GenerateScenario(ctx context.Context, req ScenarioRequest) (*Scenario, error)
}
