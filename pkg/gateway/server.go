// Package gateway serves browser clients over websocket. Each
// connection owns one chat session: the browser streams captured
// microphone PCM up, and receives scheduled agent audio, turn updates,
// and annotation results back as JSON frames.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
	"github.com/linguacafe/linguacafe/pkg/audio/player"
	"github.com/linguacafe/linguacafe/pkg/chat"
	"github.com/linguacafe/linguacafe/pkg/history"
	"github.com/linguacafe/linguacafe/pkg/live"
	"github.com/linguacafe/linguacafe/pkg/tutor"
)

// Config wires the services behind the gateway.
type Config struct {
	// Dialer opens live sessions. Required.
	Dialer live.Dialer

	// LiveModel is the live model identifier passed on each dial.
	LiveModel string

	// Voice is the agent synthesis voice name.
	Voice string

	// Tutoring services. Any may be nil; the matching feature degrades
	// silently.
	Scenarios  tutor.ScenarioGenerator
	Grammar    tutor.GrammarChecker
	Pronounce  tutor.PronunciationScorer
	Synthesize tutor.Synthesizer

	// History archives finished conversations when set.
	History *history.Store

	// CheckOrigin overrides the websocket origin check. Nil allows any
	// origin.
	CheckOrigin func(r *http.Request) bool
}

// Server upgrades HTTP requests to websocket chat sessions.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// New creates a gateway server.
func New(cfg Config) *Server {
	check := cfg.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     check,
		},
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	sess := &session{srv: s, ws: ws, id: uuid.NewString()}
	sess.run()
}

// session is the server side of one websocket connection.
type session struct {
	srv *Server
	ws  *websocket.Conn
	id  string

	writeMu sync.Mutex

	mu        sync.Mutex
	co        *chat.Coordinator
	pl        *player.Player
	scenario  *tutor.Scenario
	language  string
	startedAt time.Time

	finishOnce sync.Once
}

func (s *session) run() {
	defer s.finish()
	for {
		var msg ClientMessage
		if err := s.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("gateway: read", "session", s.id, "err", err)
			}
			return
		}
		if done := s.handle(&msg); done {
			return
		}
	}
}

// handle dispatches one client message. It reports whether the
// connection should close.
func (s *session) handle(msg *ClientMessage) bool {
	ctx := context.Background()
	switch msg.Type {
	case TypeStart:
		s.handleStart(ctx, msg)
	case TypeRecordStart:
		s.withChat(func(co *chat.Coordinator) error {
			return co.StartRecording(pcm.L16Mono16K)
		})
	case TypeAudio:
		s.withChat(func(co *chat.Coordinator) error {
			frame := pcm.Frame{Format: pcm.L16Mono16K, Data: msg.Audio}
			err := co.FeedFrame(ctx, frame)
			if errors.Is(err, chat.ErrNotRecording) {
				// Frames racing a record_stop are expected; drop them.
				return nil
			}
			return err
		})
	case TypeRecordStop:
		s.withChat(func(co *chat.Coordinator) error {
			return co.StopRecording(ctx)
		})
	case TypeText:
		s.withChat(func(co *chat.Coordinator) error {
			return co.SendText(ctx, msg.Text)
		})
	case TypeReplay:
		s.withChat(func(co *chat.Coordinator) error {
			return co.Replay(ctx, msg.TurnID)
		})
	case TypeStop:
		return true
	default:
		s.writeError("unknown message type: " + msg.Type)
	}
	return false
}

func (s *session) handleStart(ctx context.Context, msg *ClientMessage) {
	s.mu.Lock()
	started := s.co != nil
	s.mu.Unlock()
	if started {
		s.writeError("conversation already started")
		return
	}

	sc := tutor.GenerateOrFallback(ctx, s.srv.cfg.Scenarios, tutor.ScenarioRequest{
		Language:    msg.Language,
		LearnerName: msg.Learner,
		Avoid:       msg.Avoid,
	})

	out := &remoteOutput{sess: s, epoch: time.Now()}
	pl := player.New(out)
	co := chat.NewCoordinator(chat.CoordinatorConfig{
		Dialer: s.srv.cfg.Dialer,
		Session: live.Config{
			Model:        s.srv.cfg.LiveModel,
			SystemPrompt: sc.SystemPrompt,
			Voice:        s.srv.cfg.Voice,
			Language:     msg.Language,
		},
		Player:     pl,
		Grammar:    s.grammarFunc(msg.Language, sc),
		Pronounce:  s.pronounceFunc(msg.Language),
		Synthesize: s.synthesizeFunc(),
		OnUpdate:   s.onUpdate,
	})

	s.mu.Lock()
	s.co = co
	s.pl = pl
	s.scenario = sc
	s.language = msg.Language
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := co.Start(ctx); err != nil {
		// State and status already went out through onUpdate.
		slog.Warn("gateway: session start failed", "session", s.id, "err", err)
		return
	}
	s.write(ServerMessage{Type: TypeReady, Scenario: sc})

	if sc.OpeningLine != "" {
		if err := co.Prime(ctx, "Open the conversation by saying: "+sc.OpeningLine); err != nil {
			slog.Warn("gateway: opening line", "session", s.id, "err", err)
		}
	}
}

func (s *session) grammarFunc(language string, sc *tutor.Scenario) chat.GrammarFunc {
	checker := s.srv.cfg.Grammar
	if checker == nil {
		return nil
	}
	return func(ctx context.Context, text string) (*chat.GrammarVerdict, error) {
		return checker.CheckGrammar(ctx, tutor.GrammarRequest{
			Language: language,
			Text:     text,
			Context:  sc.Description,
		})
	}
}

func (s *session) pronounceFunc(language string) chat.PronounceFunc {
	scorer := s.srv.cfg.Pronounce
	if scorer == nil {
		return nil
	}
	return func(ctx context.Context, wavPayload []byte) (*chat.Pronunciation, error) {
		return scorer.ScorePronunciation(ctx, language, wavPayload)
	}
}

func (s *session) synthesizeFunc() chat.SynthesizeFunc {
	synth := s.srv.cfg.Synthesize
	if synth == nil {
		return nil
	}
	return func(ctx context.Context, text string) (pcm.Frame, error) {
		return synth.Synthesize(ctx, text)
	}
}

func (s *session) onUpdate(u chat.Update) {
	switch {
	case u.Turn != nil:
		s.write(ServerMessage{Type: TypeTurn, Turn: u.Turn})
	case u.State != nil:
		s.write(ServerMessage{Type: TypeState, State: u.State.String(), Status: u.Status})
	case u.Status != "":
		s.write(ServerMessage{Type: TypeState, Status: u.Status})
	}
}

// withChat runs fn against the coordinator, reporting failures to the
// client as non-fatal error frames.
func (s *session) withChat(fn func(co *chat.Coordinator) error) {
	s.mu.Lock()
	co := s.co
	s.mu.Unlock()
	if co == nil {
		s.writeError("no conversation started")
		return
	}
	if err := fn(co); err != nil {
		s.writeError(err.Error())
	}
}

// finish archives the conversation and tears everything down. Runs
// once, whether the client said stop or the socket just dropped.
func (s *session) finish() {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		co := s.co
		sc := s.scenario
		s.mu.Unlock()

		if co != nil {
			s.archive(co, sc)
			if err := co.Close(); err != nil {
				slog.Warn("gateway: close chat", "session", s.id, "err", err)
			}
		}
		s.ws.Close()
	})
}

func (s *session) archive(co *chat.Coordinator, sc *tutor.Scenario) {
	store := s.srv.cfg.History
	if store == nil {
		return
	}
	turns := co.Conversation().Turns()
	if len(turns) == 0 {
		return
	}
	rec := &history.Record{
		ID:        s.id,
		Language:  s.language,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
		Turns:     turns,
	}
	if sc != nil {
		rec.Scenario = sc.Title
	}
	if err := store.Save(context.Background(), rec); err != nil {
		slog.Warn("gateway: archive conversation", "session", s.id, "err", err)
	}
}

func (s *session) write(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(msg)
}

func (s *session) writeError(status string) {
	if err := s.write(ServerMessage{Type: TypeError, Status: status}); err != nil {
		slog.Debug("gateway: write error frame", "session", s.id, "err", err)
	}
}

// remoteOutput renders scheduled audio by forwarding it to the browser
// with its start time on the connection's audio clock; the browser does
// the actual rendering.
type remoteOutput struct {
	sess  *session
	epoch time.Time
}

func (o *remoteOutput) Now() time.Duration {
	return time.Since(o.epoch)
}

func (o *remoteOutput) Play(frame pcm.Frame, at time.Duration) error {
	return o.sess.write(ServerMessage{
		Type:     TypeAudio,
		Audio:    frame.Data,
		Format:   frame.Format.MIMEType(),
		PlayAtMS: at.Milliseconds(),
	})
}

func (o *remoteOutput) Flush() {
	o.sess.write(ServerMessage{Type: TypeFlush})
}
