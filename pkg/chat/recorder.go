package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// ErrNotRecording is returned by Feed and Stop outside a recording.
var ErrNotRecording = errors.New("chat: not recording")

// ErrAlreadyRecording is returned by Start during a recording.
var ErrAlreadyRecording = errors.New("chat: already recording")

// FrameSink receives captured frames as they arrive, typically the live
// session's audio input.
type FrameSink func(ctx context.Context, frame pcm.Frame) error

// Recorder accumulates one user utterance while simultaneously
// forwarding each captured frame to a sink. The device that produces
// frames lives with the caller; the recorder only owns the idle →
// recording → idle state and the accumulation buffer.
type Recorder struct {
	sink FrameSink

	mu        sync.Mutex
	recording bool
	format    pcm.Format
	acc       []byte
}

// NewRecorder creates a recorder forwarding frames to sink. A nil sink
// accumulates only.
func NewRecorder(sink FrameSink) *Recorder {
	return &Recorder{sink: sink}
}

// Start begins a new utterance, resetting the accumulation buffer.
func (r *Recorder) Start(format pcm.Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.format = format
	r.acc = r.acc[:0]
	return nil
}

// Feed appends one captured frame to the accumulation buffer and
// forwards it to the sink.
func (r *Recorder) Feed(ctx context.Context, frame pcm.Frame) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	if frame.Format != r.format {
		r.mu.Unlock()
		return fmt.Errorf("chat: frame format %v does not match recording format %v", frame.Format, r.format)
	}
	r.acc = append(r.acc, frame.Data...)
	sink := r.sink
	r.mu.Unlock()

	if sink == nil {
		return nil
	}
	return sink(ctx, frame)
}

// Recording reports whether an utterance is being captured.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Stop ends the utterance and returns the accumulated samples as one
// frame, in capture order.
func (r *Recorder) Stop() (pcm.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return pcm.Frame{}, ErrNotRecording
	}
	r.recording = false
	data := make([]byte, len(r.acc))
	copy(data, r.acc)
	r.acc = r.acc[:0]
	return pcm.Frame{Format: r.format, Data: data}, nil
}
