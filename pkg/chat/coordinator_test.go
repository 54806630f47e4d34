package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
	"github.com/linguacafe/linguacafe/pkg/audio/player"
	"github.com/linguacafe/linguacafe/pkg/live"
)

func newTestCoordinator(t *testing.T, mutate func(*CoordinatorConfig)) (*Coordinator, *live.PipeServer, chan Update) {
	t.Helper()
	sess, srv := live.NewPipe()
	updates := make(chan Update, 256)
	cfg := CoordinatorConfig{
		Dialer: live.DialFunc(func(ctx context.Context, _ *live.Config) (live.Session, error) {
			return sess, nil
		}),
		OnUpdate: func(u Update) { updates <- u },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	co := NewCoordinator(cfg)
	if err := co.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { co.Close() })
	return co, srv, updates
}

// waitTurn drains updates until one carries a turn matching pred.
func waitTurn(t *testing.T, updates chan Update, pred func(*Turn) bool) *Turn {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Turn != nil && pred(u.Turn) {
				return u.Turn
			}
		case <-deadline:
			t.Fatalf("timed out waiting for turn update")
		}
	}
}

func TestCoordinatorAssemblesAgentTurn(t *testing.T) {
	co, srv, updates := newTestCoordinator(t, nil)

	srv.Emit(
		&live.Event{AgentTranscript: "Bonjour! "},
		&live.Event{AgentTranscript: "Vous désirez?"},
		&live.Event{TurnComplete: true},
	)

	turn := waitTurn(t, updates, func(tn *Turn) bool {
		return tn.Role == RoleAgent && !tn.Streaming
	})
	if turn.Text != "Bonjour! Vous désirez?" {
		t.Fatalf("got agent text %q", turn.Text)
	}
	if got := len(co.Conversation().Turns()); got != 1 {
		t.Fatalf("got %d turns, want 1", got)
	}
}

func TestUserFragmentsDroppedWhenNotRecording(t *testing.T) {
	co, srv, updates := newTestCoordinator(t, nil)

	srv.Emit(
		&live.Event{UserTranscript: "stray echo"},
		&live.Event{AgentTranscript: "Hello"},
		&live.Event{TurnComplete: true},
	)

	waitTurn(t, updates, func(tn *Turn) bool { return tn.Role == RoleAgent && !tn.Streaming })
	for _, tn := range co.Conversation().Turns() {
		if tn.Role == RoleUser {
			t.Fatalf("user transcript entered the conversation while idle: %q", tn.Text)
		}
	}
}

func TestSendTextChecksGrammarByTurnID(t *testing.T) {
	verdict := &GrammarVerdict{Correct: false, Corrected: "I went to the market"}
	co, srv, updates := newTestCoordinator(t, func(cfg *CoordinatorConfig) {
		cfg.Grammar = func(_ context.Context, text string) (*GrammarVerdict, error) {
			return verdict, nil
		}
	})

	if err := co.SendText(context.Background(), "I goed to the market"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if texts := srv.SentTexts(); len(texts) != 1 || texts[0] != "I goed to the market" {
		t.Fatalf("session saw texts %v", texts)
	}

	turn := waitTurn(t, updates, func(tn *Turn) bool { return tn.Grammar != nil })
	if turn.Grammar.Corrected != verdict.Corrected {
		t.Fatalf("got correction %q", turn.Grammar.Corrected)
	}
	if got := co.Conversation().Turn(turn.ID); got == nil || got.Grammar == nil {
		t.Fatalf("verdict not stored on the submitted turn")
	}
}

func TestRecordingAttachesAudioAndLatePronunciation(t *testing.T) {
	release := make(chan struct{})
	score := &Pronunciation{Score: 82, Feedback: "final r is silent"}
	co, srv, updates := newTestCoordinator(t, func(cfg *CoordinatorConfig) {
		cfg.Pronounce = func(ctx context.Context, _ []byte) (*Pronunciation, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return score, nil
		}
	})

	if err := co.StartRecording(pcm.L16Mono16K); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	for range 2 {
		frame := pcm.Frame{Format: pcm.L16Mono16K, Data: make([]byte, 640)}
		if err := co.FeedFrame(context.Background(), frame); err != nil {
			t.Fatalf("FeedFrame: %v", err)
		}
	}
	srv.Emit(&live.Event{UserTranscript: "un café, s'il vous plaît"})
	spoken := waitTurn(t, updates, func(tn *Turn) bool { return tn.Role == RoleUser })

	if err := co.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if got := len(srv.SentFrames()); got != 2 {
		t.Fatalf("session saw %d frames, want 2", got)
	}
	withAudio := waitTurn(t, updates, func(tn *Turn) bool { return len(tn.Audio) > 0 })
	if withAudio.ID != spoken.ID {
		t.Fatalf("audio attached to turn %s, want %s", withAudio.ID, spoken.ID)
	}

	// Let newer turns pile up before the scoring result arrives.
	srv.Emit(&live.Event{AgentTranscript: "Tout de suite."}, &live.Event{TurnComplete: true})
	waitTurn(t, updates, func(tn *Turn) bool { return tn.Role == RoleAgent && !tn.Streaming })

	close(release)
	scored := waitTurn(t, updates, func(tn *Turn) bool { return tn.Pronunciation != nil })
	if scored.ID != spoken.ID {
		t.Fatalf("score attached to turn %s, want %s", scored.ID, spoken.ID)
	}
	if scored.Pronunciation.Score != 82 {
		t.Fatalf("got score %d", scored.Pronunciation.Score)
	}
}

func TestStopRecordingBeforeTranscriptOpensUserTurn(t *testing.T) {
	score := &Pronunciation{Score: 64, Feedback: "rushed"}
	co, _, updates := newTestCoordinator(t, func(cfg *CoordinatorConfig) {
		cfg.Pronounce = func(ctx context.Context, _ []byte) (*Pronunciation, error) {
			return score, nil
		}
	})

	if err := co.StartRecording(pcm.L16Mono16K); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	frame := pcm.Frame{Format: pcm.L16Mono16K, Data: make([]byte, 640)}
	if err := co.FeedFrame(context.Background(), frame); err != nil {
		t.Fatalf("FeedFrame: %v", err)
	}

	// Stop before any input transcription has arrived.
	if err := co.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	withAudio := waitTurn(t, updates, func(tn *Turn) bool {
		return tn.Role == RoleUser && len(tn.Audio) > 0
	})
	scored := waitTurn(t, updates, func(tn *Turn) bool { return tn.Pronunciation != nil })
	if scored.ID != withAudio.ID {
		t.Fatalf("score attached to turn %s, want %s", scored.ID, withAudio.ID)
	}
}

func TestCloseDropsLateAnnotationResults(t *testing.T) {
	started := make(chan struct{})
	co, _, updates := newTestCoordinator(t, func(cfg *CoordinatorConfig) {
		cfg.Grammar = func(ctx context.Context, _ string) (*GrammarVerdict, error) {
			close(started)
			// Outlive the screen: only teardown's cancellation ends the call.
			<-ctx.Done()
			return &GrammarVerdict{Correct: true}, nil
		}
	})

	if err := co.SendText(context.Background(), "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	turn := waitTurn(t, updates, func(tn *Turn) bool { return tn.Role == RoleUser })
	<-started

	if err := co.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := co.Conversation().Turn(turn.ID); got.Grammar != nil {
		t.Fatalf("late verdict mutated conversation after close")
	}
	for {
		select {
		case u := <-updates:
			if u.Turn != nil && u.Turn.Grammar != nil {
				t.Fatalf("update emitted after close")
			}
		default:
			return
		}
	}
}

func TestStartSurfacesDialFailure(t *testing.T) {
	updates := make(chan Update, 16)
	co := NewCoordinator(CoordinatorConfig{
		Dialer: live.DialFunc(func(context.Context, *live.Config) (live.Session, error) {
			return nil, errors.New("no network")
		}),
		OnUpdate: func(u Update) { updates <- u },
	})
	defer co.Close()

	if err := co.Start(context.Background()); err == nil {
		t.Fatalf("Start succeeded with failing dialer")
	}
	if co.State() != StateError {
		t.Fatalf("state = %v, want error", co.State())
	}
	select {
	case u := <-updates:
		if u.State == nil || *u.State != StateError || u.Status == "" {
			t.Fatalf("got update %+v, want error state with status", u)
		}
	default:
		t.Fatalf("no status update emitted")
	}

	if err := co.SendText(context.Background(), "hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendText: got %v, want ErrNotConnected", err)
	}
	if err := co.StartRecording(pcm.L16Mono16K); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("StartRecording: got %v, want ErrNotConnected", err)
	}
}

type chanOutput struct {
	plays chan pcm.Frame
}

func (o *chanOutput) Now() time.Duration { return 0 }

func (o *chanOutput) Play(frame pcm.Frame, _ time.Duration) error {
	o.plays <- frame
	return nil
}

func TestAgentAudioReachesPlayer(t *testing.T) {
	out := &chanOutput{plays: make(chan pcm.Frame, 8)}
	_, srv, _ := newTestCoordinator(t, func(cfg *CoordinatorConfig) {
		cfg.Player = player.New(out)
	})

	data := make([]byte, 480)
	srv.Emit(&live.Event{Audio: &pcm.Frame{Format: pcm.L16Mono24K, Data: data}})

	select {
	case fr := <-out.plays:
		if fr.Format != pcm.L16Mono24K || len(fr.Data) != len(data) {
			t.Fatalf("played frame %v/%d bytes", fr.Format, len(fr.Data))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("agent audio never reached the output")
	}
}
