package live

import (
	"context"
	"io"
	"sync"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// NewPipe creates a connected in-process session pair: the client side
// implements Session, and the server side lets a test or offline driver
// observe outbound traffic and inject inbound events.
func NewPipe() (*PipeSession, *PipeServer) {
	events := make(chan *Event, 64)
	shared := &pipeShared{events: events}
	return &PipeSession{shared: shared}, &PipeServer{shared: shared}
}

type pipeShared struct {
	events chan *Event

	mu         sync.Mutex
	sentFrames []pcm.Frame
	sentTexts  []string
	closed     bool
}

var _ Session = (*PipeSession)(nil)

// PipeSession is the client side of an in-process session.
type PipeSession struct {
	shared *pipeShared
}

func (s *PipeSession) SendAudio(ctx context.Context, frame pcm.Frame) error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	if s.shared.closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Copy: callers may reuse the frame buffer for the next capture read.
	data := make([]byte, len(frame.Data))
	copy(data, frame.Data)
	s.shared.sentFrames = append(s.shared.sentFrames, pcm.Frame{Format: frame.Format, Data: data})
	return nil
}

func (s *PipeSession) SendText(ctx context.Context, text string) error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	if s.shared.closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.shared.sentTexts = append(s.shared.sentTexts, text)
	return nil
}

func (s *PipeSession) Recv() (*Event, error) {
	evt, ok := <-s.shared.events
	if !ok {
		return nil, io.EOF
	}
	return evt, nil
}

func (s *PipeSession) Close() error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	if s.shared.closed {
		return nil
	}
	s.shared.closed = true
	close(s.shared.events)
	return nil
}

// PipeServer is the driver side of an in-process session.
type PipeServer struct {
	shared *pipeShared
}

// Emit injects inbound events. It is a no-op after the session closes.
func (s *PipeServer) Emit(events ...*Event) {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	if s.shared.closed {
		return
	}
	for _, evt := range events {
		s.shared.events <- evt
	}
}

// SentFrames returns a snapshot of the audio frames sent by the client.
func (s *PipeServer) SentFrames() []pcm.Frame {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	out := make([]pcm.Frame, len(s.shared.sentFrames))
	copy(out, s.shared.sentFrames)
	return out
}

// SentTexts returns a snapshot of the text turns sent by the client.
func (s *PipeServer) SentTexts() []string {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	out := make([]string, len(s.shared.sentTexts))
	copy(out, s.shared.sentTexts)
	return out
}

// Closed reports whether the client has closed the session.
func (s *PipeServer) Closed() bool {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return s.shared.closed
}
