// Package live abstracts the bidirectional streaming conversation
// session behind the chat pipeline. A Session carries user audio and
// text to the model and delivers interleaved audio fragments, partial
// transcripts, and turn-complete markers back, in arrival order.
//
// The production backend is the Gemini Live API (see gemini.go). An
// in-process pipe backend (pipe.go) serves tests and offline work.
package live

import (
	"context"
	"errors"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// ErrSessionClosed is returned by send and receive operations after the
// session has been closed.
var ErrSessionClosed = errors.New("live: session closed")

// Config describes one conversation session.
type Config struct {
	// Model is the live model identifier.
	Model string

	// SystemPrompt is the roleplay persona instruction, fixed for the
	// whole session.
	SystemPrompt string

	// Voice is the synthesis voice name, if the backend supports one.
	Voice string

	// Language is the BCP-47 language code of the conversation.
	Language string
}

// Event is one inbound server event. Any combination of fields may be
// set on a single event; consumers handle each populated field in order.
type Event struct {
	// Audio is an agent audio fragment ready for playback scheduling.
	Audio *pcm.Frame

	// UserTranscript is a partial transcript fragment of the learner's
	// speech.
	UserTranscript string

	// AgentTranscript is a partial transcript fragment of the agent's
	// speech.
	AgentTranscript string

	// TurnComplete marks the end of the current exchange: all
	// in-progress turns are final.
	TurnComplete bool

	// Interrupted reports that the agent's generation was cut off
	// before TurnComplete.
	Interrupted bool
}

// Session is one open bidirectional streaming conversation.
//
// SendAudio and SendText may be called concurrently with Recv. Recv
// blocks until an event arrives; it returns io.EOF after an orderly
// remote close and ErrSessionClosed after a local Close.
type Session interface {
	// SendAudio forwards one captured audio frame to the model.
	SendAudio(ctx context.Context, frame pcm.Frame) error

	// SendText submits one complete user text turn.
	SendText(ctx context.Context, text string) error

	// Recv returns the next inbound event.
	Recv() (*Event, error)

	// Close tears the session down. Safe to call more than once.
	Close() error
}

// Dialer opens live sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg *Config) (Session, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, cfg *Config) (Session, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context, cfg *Config) (Session, error) {
	return f(ctx, cfg)
}
