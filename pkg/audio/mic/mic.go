// Package mic drives the terminal client's audio devices: microphone
// capture toward the live session and speaker playback of scheduled
// agent audio. Browser clients never touch this package; their devices
// live behind the Web Audio API on the other side of the gateway.
package mic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

const framesPerBuffer = 1024

// ErrClosed is returned by device operations after Close.
var ErrClosed = errors.New("mic: device closed")

// Init initializes the audio backend. Call once before opening devices.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("mic: initialize: %w", err)
	}
	return nil
}

// Terminate releases the audio backend.
func Terminate() error {
	return portaudio.Terminate()
}

// Capture reads microphone audio from the default input device,
// delivering frames in the requested format.
type Capture struct {
	format pcm.Format
	buf    []int16

	mu     sync.Mutex
	stream *portaudio.Stream
	closed bool
}

// OpenCapture opens the default input device at the format's sample
// rate and starts capturing.
func OpenCapture(format pcm.Format) (*Capture, error) {
	c := &Capture{
		format: format,
		buf:    make([]int16, framesPerBuffer),
	}
	stream, err := portaudio.OpenDefaultStream(
		format.Channels(), 0, float64(format.SampleRate()), framesPerBuffer, &c.buf)
	if err != nil {
		return nil, fmt.Errorf("mic: open capture: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("mic: start capture: %w", err)
	}
	c.stream = stream
	return c, nil
}

// ReadFrame blocks until the next buffer of samples is captured and
// returns it as a frame. The returned frame owns its data.
func (c *Capture) ReadFrame() (pcm.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pcm.Frame{}, ErrClosed
	}
	if err := c.stream.Read(); err != nil {
		return pcm.Frame{}, fmt.Errorf("mic: read: %w", err)
	}
	return pcm.FromInt16s(c.format, c.buf), nil
}

// Close stops and releases the capture device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stream.Stop()
	return c.stream.Close()
}

// Speaker renders scheduled audio on the default output device. It
// implements the playback scheduler's Output: Play blocks until the
// fragment has been written to the device, and frames in other sample
// formats are converted on the way through.
type Speaker struct {
	format pcm.Format
	buf    []int16
	epoch  time.Time

	mu     sync.Mutex
	stream *portaudio.Stream
	convs  map[pcm.Format]*Converter
	closed bool
}

// OpenSpeaker opens the default output device at the format's sample
// rate.
func OpenSpeaker(format pcm.Format) (*Speaker, error) {
	s := &Speaker{
		format: format,
		buf:    make([]int16, framesPerBuffer),
		epoch:  time.Now(),
		convs:  make(map[pcm.Format]*Converter),
	}
	stream, err := portaudio.OpenDefaultStream(
		0, format.Channels(), float64(format.SampleRate()), framesPerBuffer, &s.buf)
	if err != nil {
		return nil, fmt.Errorf("mic: open speaker: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("mic: start speaker: %w", err)
	}
	s.stream = stream
	return s, nil
}

// Now reports the speaker's playback clock.
func (s *Speaker) Now() time.Duration {
	return time.Since(s.epoch)
}

// Play waits until the fragment's start time, converts it to the device
// format, and writes it through. The scheduler calls it serially with
// non-decreasing start times.
func (s *Speaker) Play(frame pcm.Frame, at time.Duration) error {
	if wait := at - s.Now(); wait > 0 {
		time.Sleep(wait)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	out, err := s.convert(frame)
	if err != nil {
		return err
	}
	samples := out.Int16s()
	for len(samples) > 0 {
		n := copy(s.buf, samples)
		samples = samples[n:]
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("mic: write: %w", err)
		}
	}
	return nil
}

func (s *Speaker) convert(frame pcm.Frame) (pcm.Frame, error) {
	if frame.Format == s.format {
		return frame, nil
	}
	conv := s.convs[frame.Format]
	if conv == nil {
		var err error
		conv, err = NewConverter(frame.Format, s.format)
		if err != nil {
			return pcm.Frame{}, err
		}
		s.convs[frame.Format] = conv
	}
	return conv.Convert(frame)
}

// Close stops and releases the output device.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Stop()
	return s.stream.Close()
}
