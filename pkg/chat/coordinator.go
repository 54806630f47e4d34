package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
	"github.com/linguacafe/linguacafe/pkg/audio/player"
	"github.com/linguacafe/linguacafe/pkg/audio/wavio"
	"github.com/linguacafe/linguacafe/pkg/live"
)

// State is the session connection state for one chat screen.
type State int

const (
	// StateDisconnected means no session is open.
	StateDisconnected State = iota
	// StateConnected means the live session is open.
	StateConnected
	// StateError means the session failed; voice and text stay
	// disabled until a new chat starts.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by send operations without an open session.
var ErrNotConnected = errors.New("chat: not connected")

// GrammarFunc validates a completed user utterance. The language and
// scenario context are bound by the caller.
type GrammarFunc func(ctx context.Context, text string) (*GrammarVerdict, error)

// PronounceFunc scores a recorded utterance from its WAV payload.
type PronounceFunc func(ctx context.Context, wavPayload []byte) (*Pronunciation, error)

// SynthesizeFunc renders text as speech for replay.
type SynthesizeFunc func(ctx context.Context, text string) (pcm.Frame, error)

// Update is one observable change pushed to the UI layer.
type Update struct {
	// Turn is a snapshot of the changed turn, when a turn changed.
	Turn *Turn

	// State is set when the connection state changed.
	State *State

	// Status is a non-fatal user-visible message ("microphone
	// unavailable", "connection lost").
	Status string
}

// CoordinatorConfig wires one chat screen's collaborators.
type CoordinatorConfig struct {
	Dialer  live.Dialer
	Session live.Config
	Player  *player.Player

	// Annotation services. Nil funcs disable the concern silently.
	Grammar    GrammarFunc
	Pronounce  PronounceFunc
	Synthesize SynthesizeFunc

	// OnUpdate receives turn and state changes. Called from the
	// coordinator's goroutines; implementations must be safe for that.
	OnUpdate func(Update)
}

// Coordinator owns one live session and drives the conversation state
// for a single chat screen: it forwards user audio and text outbound,
// dispatches inbound events in arrival order, and correlates
// asynchronous annotation results back onto the right turns.
type Coordinator struct {
	cfg  CoordinatorConfig
	conv *Conversation
	rec  *Recorder

	mu    sync.Mutex
	sess  live.Session
	state State
	alive bool

	// bg scopes background annotation calls; cancelled on Close.
	bg     context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewCoordinator creates a coordinator for one chat screen.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	bg, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:    cfg,
		conv:   NewConversation(),
		alive:  true,
		bg:     bg,
		cancel: cancel,
	}
	c.rec = NewRecorder(func(ctx context.Context, frame pcm.Frame) error {
		c.mu.Lock()
		sess := c.sess
		c.mu.Unlock()
		if sess == nil {
			return ErrNotConnected
		}
		return sess.SendAudio(ctx, frame)
	})
	return c
}

// Conversation returns the conversation owned by this coordinator.
func (c *Coordinator) Conversation() *Conversation { return c.conv }

// State returns the current connection state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the live session and begins dispatching inbound events.
// On failure the chat stays alive in a degraded state: the error is
// surfaced as a status update and returned.
func (c *Coordinator) Start(ctx context.Context) error {
	sess, err := c.cfg.Dialer.Dial(ctx, &c.cfg.Session)
	if err != nil {
		c.setState(StateError, "could not connect: "+err.Error())
		return fmt.Errorf("chat: start session: %w", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	c.setState(StateConnected, "")

	c.wg.Add(1)
	go c.recvLoop(sess)
	return nil
}

// Close tears the chat screen down: stops any active recording,
// closes the live session, and releases the playback pipeline. Results
// of still in-flight annotation calls are discarded.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return nil
	}
	c.alive = false
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	c.cancel()

	if c.rec.Recording() {
		_, _ = c.rec.Stop()
	}
	if sess != nil {
		sess.Close()
	}
	if c.cfg.Player != nil {
		c.cfg.Player.Close()
	}
	c.wg.Wait()
	return nil
}

// SendText submits one complete text turn and triggers its grammar
// validation.
func (c *Coordinator) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}
	if err := sess.SendText(ctx, text); err != nil {
		return err
	}
	t := c.conv.AddText(RoleUser, text)
	c.emit(Update{Turn: t})
	c.spawnGrammar(t.ID, t.Text)
	return nil
}

// Prime sends instruction text to the model without recording a user
// turn. Used to elicit the scenario's opening line.
func (c *Coordinator) Prime(ctx context.Context, text string) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.SendText(ctx, text)
}

// StartRecording begins capturing a new user utterance.
func (c *Coordinator) StartRecording(format pcm.Format) error {
	c.mu.Lock()
	connected := c.sess != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return c.rec.Start(format)
}

// FeedFrame forwards one captured frame: it accumulates for later
// storage and is sent to the live session immediately.
func (c *Coordinator) FeedFrame(ctx context.Context, frame pcm.Frame) error {
	return c.rec.Feed(ctx, frame)
}

// Recording reports whether an utterance is being captured.
func (c *Coordinator) Recording() bool { return c.rec.Recording() }

// StopRecording ends the capture, attaches the encoded payload to the
// most recently opened user turn, and kicks off pronunciation analysis
// for that turn. The analysis result attaches by turn identity, so it
// still lands correctly if the turn finalizes first.
func (c *Coordinator) StopRecording(ctx context.Context) error {
	payload, err := c.rec.Stop()
	if err != nil {
		return err
	}
	if len(payload.Data) == 0 {
		return nil
	}

	turn := c.conv.LastUserTurn()
	if turn == nil {
		// Transcription may lag the recording. Open the user turn
		// ourselves so the payload and its analysis have a home.
		turn = c.conv.Append(RoleUser, "")
	}

	wavPayload, err := wavio.Encode(payload)
	if err != nil {
		return fmt.Errorf("chat: encode recording: %w", err)
	}
	c.conv.AttachAudio(turn.ID, payload.Format, wavPayload)
	if t := c.conv.Turn(turn.ID); t != nil {
		c.emit(Update{Turn: t})
	}

	c.spawnPronunciation(turn.ID, wavPayload)
	return nil
}

// Replay plays a finalized turn's audio on demand, preferring the
// original recording and falling back to synthesized speech. Only one
// replay may be active at a time.
func (c *Coordinator) Replay(ctx context.Context, turnID string) error {
	if c.cfg.Player == nil {
		return nil
	}
	t := c.conv.Turn(turnID)
	if t == nil {
		return fmt.Errorf("chat: replay: no such turn %s", turnID)
	}

	if len(t.Audio) > 0 {
		frame, err := wavio.Decode(t.Audio)
		if err != nil {
			return fmt.Errorf("chat: replay: %w", err)
		}
		return c.cfg.Player.Replay(frame)
	}
	if t.Text == "" || c.cfg.Synthesize == nil {
		return nil
	}
	frame, err := c.cfg.Synthesize(ctx, t.Text)
	if err != nil {
		// Synthesis failures degrade silently.
		slog.Warn("chat: replay synthesis failed", "turn", turnID, "err", err)
		return nil
	}
	return c.cfg.Player.Replay(frame)
}

func (c *Coordinator) recvLoop(sess live.Session) {
	defer c.wg.Done()
	for {
		evt, err := sess.Recv()
		if err != nil {
			c.mu.Lock()
			alive := c.alive
			c.mu.Unlock()
			if !alive || errors.Is(err, live.ErrSessionClosed) {
				return
			}
			if errors.Is(err, io.EOF) {
				c.setState(StateDisconnected, "conversation ended")
			} else {
				c.setState(StateError, "connection lost: "+err.Error())
			}
			return
		}
		c.handleEvent(evt)
	}
}

// handleEvent dispatches one inbound event. Fields are handled in a
// fixed order; events themselves arrive in session order.
func (c *Coordinator) handleEvent(evt *live.Event) {
	if evt.Audio != nil && c.cfg.Player != nil {
		if err := c.cfg.Player.Enqueue(*evt.Audio); err != nil && !errors.Is(err, player.ErrClosed) {
			slog.Warn("chat: enqueue agent audio", "err", err)
		}
	}
	if evt.AgentTranscript != "" {
		t := c.conv.Append(RoleAgent, evt.AgentTranscript)
		c.emit(Update{Turn: t})
	}
	if evt.UserTranscript != "" && c.rec.Recording() {
		t := c.conv.Append(RoleUser, evt.UserTranscript)
		c.emit(Update{Turn: t})
	}
	if evt.Interrupted && c.cfg.Player != nil {
		c.cfg.Player.Flush()
	}
	if evt.TurnComplete {
		for _, t := range c.conv.FinalizeOpen() {
			c.emit(Update{Turn: t})
			if t.Role == RoleUser && t.Text != "" {
				c.spawnGrammar(t.ID, t.Text)
			}
		}
	}
}

// spawnGrammar runs grammar validation in the background and attaches
// the verdict by turn identity, guarded by the liveness flag.
func (c *Coordinator) spawnGrammar(turnID, text string) {
	if c.cfg.Grammar == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		v, err := c.cfg.Grammar(c.bg, text)
		if err != nil || v == nil {
			if err != nil {
				slog.Debug("chat: grammar check failed", "turn", turnID, "err", err)
			}
			return
		}
		c.attachIfAlive(turnID, func() bool { return c.conv.AttachGrammar(turnID, v) })
	}()
}

// spawnPronunciation runs pronunciation scoring in the background and
// attaches the result by turn identity, guarded by the liveness flag.
func (c *Coordinator) spawnPronunciation(turnID string, wavPayload []byte) {
	if c.cfg.Pronounce == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		p, err := c.cfg.Pronounce(c.bg, wavPayload)
		if err != nil || p == nil {
			if err != nil {
				slog.Debug("chat: pronunciation scoring failed", "turn", turnID, "err", err)
			}
			return
		}
		c.attachIfAlive(turnID, func() bool { return c.conv.AttachPronunciation(turnID, p) })
	}()
}

// attachIfAlive applies an annotation mutation only while the screen is
// alive, then emits the updated turn. Late results after teardown are
// dropped without touching state.
func (c *Coordinator) attachIfAlive(turnID string, attach func() bool) {
	c.mu.Lock()
	alive := c.alive
	c.mu.Unlock()
	if !alive {
		return
	}
	if !attach() {
		return
	}
	if t := c.conv.Turn(turnID); t != nil {
		c.emit(Update{Turn: t})
	}
}

func (c *Coordinator) setState(s State, status string) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.emit(Update{State: &s, Status: status})
}

func (c *Coordinator) emit(u Update) {
	c.mu.Lock()
	alive := c.alive
	c.mu.Unlock()
	if !alive || c.cfg.OnUpdate == nil {
		return
	}
	c.cfg.OnUpdate(u)
}
