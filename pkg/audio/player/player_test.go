package player

import (
	"sync"
	"testing"
	"time"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// fakeOutput records scheduled plays against a manually advanced clock.
type fakeOutput struct {
	mu    sync.Mutex
	now   time.Duration
	plays []playRecord
}

type playRecord struct {
	start    time.Duration
	duration time.Duration
}

func (o *fakeOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) Play(frame pcm.Frame, at time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plays = append(o.plays, playRecord{start: at, duration: frame.Duration()})
	return nil
}

func (o *fakeOutput) advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now += d
}

func (o *fakeOutput) records() []playRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]playRecord, len(o.plays))
	copy(out, o.plays)
	return out
}

func frame24k(d time.Duration) pcm.Frame {
	return pcm.Frame{Format: pcm.L16Mono24K, Data: make([]byte, pcm.L16Mono24K.BytesInDuration(d))}
}

func waitPlays(t *testing.T, o *fakeOutput, n int) []playRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recs := o.records(); len(recs) >= n {
			return recs
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d plays, have %d", n, len(o.records()))
	return nil
}

func TestEnqueueSequentialNoOverlap(t *testing.T) {
	out := &fakeOutput{}
	p := New(out)
	defer p.Close()

	// Fragments arrive faster than real time: all scheduled at once.
	for i := 0; i < 5; i++ {
		if err := p.Enqueue(frame24k(100 * time.Millisecond)); err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
	}

	recs := waitPlays(t, out, 5)
	for i, r := range recs {
		want := time.Duration(i) * 100 * time.Millisecond
		if r.start != want {
			t.Errorf("fragment %d start = %v, want %v", i, r.start, want)
		}
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].start < recs[i-1].start+recs[i-1].duration {
			t.Errorf("fragment %d overlaps previous: start %v < %v",
				i, recs[i].start, recs[i-1].start+recs[i-1].duration)
		}
	}
}

func TestEnqueueAfterGapStartsAtClock(t *testing.T) {
	out := &fakeOutput{}
	p := New(out)
	defer p.Close()

	if err := p.Enqueue(frame24k(50 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	waitPlays(t, out, 1)

	// Clock runs past the cursor before the next fragment arrives.
	out.advance(300 * time.Millisecond)
	if err := p.Enqueue(frame24k(50 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	recs := waitPlays(t, out, 2)
	if recs[1].start != 300*time.Millisecond {
		t.Fatalf("late fragment start = %v, want 300ms", recs[1].start)
	}
}

func TestReplayMutualExclusion(t *testing.T) {
	out := &fakeOutput{}
	p := New(out)
	defer p.Close()

	// Hold the scheduling loop behind a long live fragment so the
	// replay stays queued.
	if err := p.Enqueue(frame24k(time.Second)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if err := p.Replay(frame24k(100 * time.Millisecond)); err != nil {
		t.Fatalf("first Replay error: %v", err)
	}
	if err := p.Replay(frame24k(100 * time.Millisecond)); err != ErrReplayBusy {
		t.Fatalf("second Replay error = %v, want ErrReplayBusy", err)
	}

	waitPlays(t, out, 2)

	// After the first replay rendered, a new replay is accepted.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := p.Replay(frame24k(10 * time.Millisecond)); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("replay slot never freed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFlushDropsQueue(t *testing.T) {
	out := &fakeOutput{}
	p := New(out)
	defer p.Close()

	if err := p.Enqueue(frame24k(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	waitPlays(t, out, 1)

	out.advance(40 * time.Millisecond)
	p.Flush()

	if err := p.Enqueue(frame24k(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	recs := waitPlays(t, out, 2)
	if recs[1].start != 40*time.Millisecond {
		t.Fatalf("post-flush start = %v, want 40ms", recs[1].start)
	}
}

// flushOutput counts downstream flush notifications.
type flushOutput struct {
	fakeOutput
	flushes int
}

func (o *flushOutput) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushes++
}

func TestFlushNotifiesOutput(t *testing.T) {
	out := &flushOutput{}
	p := New(out)
	defer p.Close()

	p.Flush()

	out.mu.Lock()
	got := out.flushes
	out.mu.Unlock()
	if got != 1 {
		t.Fatalf("output saw %d flushes, want 1", got)
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	out := &fakeOutput{}
	p := New(out)
	if err := p.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := p.Enqueue(frame24k(10 * time.Millisecond)); err != ErrClosed {
		t.Fatalf("Enqueue after close = %v, want ErrClosed", err)
	}
}

func TestFlushAfterCloseReturns(t *testing.T) {
	// An interruption event can race teardown and hit a closed player.
	out := &fakeOutput{}
	p := New(out)
	if err := p.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not return after Close")
	}
}
