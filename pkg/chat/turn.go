// Package chat implements the conversation pipeline: turn and
// transcript assembly, recording capture, and the streaming session
// coordinator that binds the live session, playback, and annotation
// services together for one chat screen.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// Role identifies the speaker of a turn.
type Role string

const (
	// RoleUser is the learner.
	RoleUser Role = "user"
	// RoleAgent is the AI roleplay partner.
	RoleAgent Role = "agent"
)

// GrammarVerdict is the grammar annotation attached to a user turn.
type GrammarVerdict struct {
	Correct     bool   `json:"correct" msgpack:"correct"`
	Corrected   string `json:"corrected" msgpack:"corrected"`
	Explanation string `json:"explanation" msgpack:"explanation"`
}

// Pronunciation is the pronunciation annotation attached to a user turn.
type Pronunciation struct {
	// Score is 0-100.
	Score        int      `json:"score" msgpack:"score"`
	Feedback     string   `json:"feedback" msgpack:"feedback"`
	FlaggedWords []string `json:"flagged_words,omitempty" msgpack:"flagged_words"`
}

// Turn is one contiguous utterance by either party. Its text grows by
// transcript fragments while Streaming is true; annotations may attach
// at any point after creation, including after finalization.
type Turn struct {
	ID        string    `json:"id" msgpack:"id"`
	Role      Role      `json:"role" msgpack:"role"`
	Text      string    `json:"text" msgpack:"text"`
	Streaming bool      `json:"streaming" msgpack:"streaming"`
	StartedAt time.Time `json:"started_at" msgpack:"started_at"`

	// Audio is the learner's recorded utterance as a WAV payload, set
	// when a recording stops. Empty for agent turns.
	Audio []byte `json:"-" msgpack:"audio"`

	// AudioFormat is the PCM format of the recorded payload.
	AudioFormat pcm.Format `json:"-" msgpack:"audio_format"`

	Grammar       *GrammarVerdict `json:"grammar,omitempty" msgpack:"grammar"`
	Pronunciation *Pronunciation  `json:"pronunciation,omitempty" msgpack:"pronunciation"`
}

func newTurn(role Role) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Streaming: true,
		StartedAt: time.Now(),
	}
}

// clone returns a shallow copy safe to hand to callbacks while the
// conversation keeps mutating the original.
func (t *Turn) clone() *Turn {
	c := *t
	return &c
}
