package gateway

import (
	"github.com/linguacafe/linguacafe/pkg/chat"
	"github.com/linguacafe/linguacafe/pkg/encoding"
	"github.com/linguacafe/linguacafe/pkg/tutor"
)

// Wire protocol: JSON text frames in both directions, one message per
// frame. Audio crosses as base64 PCM; the sample format rides along as
// a MIME type.

// Client message types.
const (
	TypeStart       = "start"        // begin a conversation
	TypeRecordStart = "record_start" // begin capturing an utterance
	TypeAudio       = "audio"        // one captured PCM frame (client → server)
	TypeRecordStop  = "record_stop"  // end the utterance
	TypeText        = "text"         // complete typed turn
	TypeReplay      = "replay"       // replay a turn's audio
	TypeStop        = "stop"         // end the conversation
)

// Server message types. TypeAudio is shared: server → client it carries
// a scheduled agent fragment.
const (
	TypeReady = "ready" // scenario generated, session open
	TypeTurn  = "turn"  // turn created or updated
	TypeFlush = "flush" // drop scheduled audio not yet played
	TypeState = "state" // connection state change
	TypeError = "error" // non-fatal request failure
)

// ClientMessage is one inbound frame from the browser.
type ClientMessage struct {
	Type string `json:"type"`

	// start
	Language string `json:"language,omitempty"`
	Learner  string `json:"learner,omitempty"`
	Avoid    string `json:"avoid,omitempty"`

	// audio: 16 kHz mono 16-bit LE PCM
	Audio encoding.StdBase64Data `json:"audio,omitempty"`

	// text
	Text string `json:"text,omitempty"`

	// replay
	TurnID string `json:"turn_id,omitempty"`
}

// ServerMessage is one outbound frame to the browser.
type ServerMessage struct {
	Type string `json:"type"`

	// ready
	Scenario *tutor.Scenario `json:"scenario,omitempty"`

	// turn
	Turn *chat.Turn `json:"turn,omitempty"`

	// audio: 24 kHz mono 16-bit LE PCM agent fragment, to start at
	// PlayAtMS on the connection's audio clock.
	Audio    encoding.StdBase64Data `json:"audio,omitempty"`
	Format   string                 `json:"format,omitempty"`
	PlayAtMS int64                  `json:"play_at_ms,omitempty"`

	// state
	State string `json:"state,omitempty"`

	// state / error
	Status string `json:"status,omitempty"`
}
