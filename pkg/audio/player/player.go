// Package player schedules gap-free playback of independently arriving
// audio fragments.
//
// A single monotonic cursor tracks the earliest time the next fragment
// may start: each fragment is scheduled at max(cursor, output clock
// now) and the cursor advances by the fragment's duration. Fragments
// therefore never overlap, regardless of arrival jitter or bursts
// faster than real time.
package player

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// ErrReplayBusy is returned when a replay is requested while another
// one is queued or playing.
var ErrReplayBusy = errors.New("player: replay already in progress")

// ErrClosed is returned when scheduling on a closed player.
var ErrClosed = errors.New("player: closed")

// Output renders scheduled audio on a device or sink.
//
// Now reports the output clock. Play blocks until the fragment has been
// rendered; the player calls it from a single goroutine, never
// concurrently, and always with non-decreasing start times.
type Output interface {
	Now() time.Duration
	Play(frame pcm.Frame, at time.Duration) error
}

// Flusher is implemented by outputs that buffer scheduled audio beyond
// the player's queue (a remote client, a device ring buffer). Flush
// tells them to drop anything not yet rendered.
type Flusher interface {
	Flush()
}

type item struct {
	frame  pcm.Frame
	replay bool
}

// Player is the playback scheduler for one chat screen.
type Player struct {
	out   Output
	queue chan item

	mu       sync.Mutex
	cursor   time.Duration
	replayIn bool
	closed   bool

	done chan struct{}
}

// New creates a player rendering to out and starts its scheduling loop.
func New(out Output) *Player {
	p := &Player{
		out:   out,
		queue: make(chan item, 256),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue schedules a live audio fragment after everything already
// queued. It never blocks on playback.
func (p *Player) Enqueue(frame pcm.Frame) error {
	if len(frame.Data) == 0 {
		return nil
	}
	return p.push(item{frame: frame})
}

// Replay schedules playback of a finalized turn's audio. Only one
// replay may be queued or playing at a time.
func (p *Player) Replay(frame pcm.Frame) error {
	if len(frame.Data) == 0 {
		return nil
	}
	p.mu.Lock()
	if p.replayIn {
		p.mu.Unlock()
		return ErrReplayBusy
	}
	p.replayIn = true
	p.mu.Unlock()

	if err := p.push(item{frame: frame, replay: true}); err != nil {
		p.mu.Lock()
		p.replayIn = false
		p.mu.Unlock()
		return err
	}
	return nil
}

// Flush drops queued fragments and pulls the cursor back to the output
// clock, so the next fragment starts immediately. Used when the agent
// is interrupted mid-turn.
func (p *Player) Flush() {
	for {
		select {
		case it, ok := <-p.queue:
			if !ok {
				// Closed: the run loop already drained everything.
				return
			}
			if it.replay {
				p.mu.Lock()
				p.replayIn = false
				p.mu.Unlock()
			}
		default:
			p.mu.Lock()
			p.cursor = p.out.Now()
			p.mu.Unlock()
			if f, ok := p.out.(Flusher); ok {
				f.Flush()
			}
			return
		}
	}
}

// Close stops the scheduling loop and discards queued audio. The
// current fragment, if any, finishes rendering.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	close(p.queue)
	<-p.done
	return nil
}

func (p *Player) push(it item) error {
	// The lock spans the send so Close cannot close the queue between
	// the check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- it:
		return nil
	default:
		return fmt.Errorf("player: queue full: %w", io.ErrShortBuffer)
	}
}

func (p *Player) run() {
	defer close(p.done)
	for it := range p.queue {
		p.mu.Lock()
		start := p.cursor
		if now := p.out.Now(); now > start {
			start = now
		}
		p.cursor = start + it.frame.Duration()
		p.mu.Unlock()

		if err := p.out.Play(it.frame, start); err != nil {
			slog.Warn("player: output error", "err", err)
		}

		if it.replay {
			p.mu.Lock()
			p.replayIn = false
			p.mu.Unlock()
		}
	}
}
