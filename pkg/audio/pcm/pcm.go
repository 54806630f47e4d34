// Package pcm defines the raw audio formats exchanged with the live
// conversation service and the sample/duration arithmetic used by the
// capture and playback pipelines.
//
// All audio in this codebase is uncompressed 16-bit little-endian mono
// PCM. The live session consumes L16Mono16K and produces L16Mono24K.
package pcm

import (
	"encoding/binary"
	"time"
)

const (
	// L16Mono16K is audio/L16; rate=16000; channels=1. Microphone and
	// session-input format.
	L16Mono16K Format = iota
	// L16Mono24K is audio/L16; rate=24000; channels=1. Agent audio and
	// synthesized speech format.
	L16Mono24K
	// L16Mono48K is audio/L16; rate=48000; channels=1. Common capture
	// device rate before resampling.
	L16Mono48K
)

// Format identifies a raw PCM audio format.
type Format int

// SampleRate returns the sample rate in Hz.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid format")
}

// Channels returns the number of channels.
func (f Format) Channels() int { return 1 }

// Depth returns the sample bit depth.
func (f Format) Depth() int { return 16 }

// BytesPerSample returns the size of one sample frame in bytes.
func (f Format) BytesPerSample() int { return f.Channels() * f.Depth() / 8 }

// Samples returns the number of samples held in the given number of bytes.
func (f Format) Samples(bytes int) int {
	return bytes / f.BytesPerSample()
}

// SamplesInDuration returns the number of samples spanning d.
func (f Format) SamplesInDuration(d time.Duration) int {
	return int(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes spanning d.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.SamplesInDuration(d) * f.BytesPerSample()
}

// Duration returns the play time of the given number of bytes.
func (f Format) Duration(bytes int) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of the format.
func (f Format) BytesRate() int {
	return f.SampleRate() * f.BytesPerSample()
}

// MIMEType returns the media type string used on the session wire.
func (f Format) MIMEType() string {
	switch f {
	case L16Mono16K:
		return "audio/pcm;rate=16000"
	case L16Mono24K:
		return "audio/pcm;rate=24000"
	case L16Mono48K:
		return "audio/pcm;rate=48000"
	}
	panic("pcm: invalid format")
}

// String returns a human-readable representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid format")
}

// Frame is a contiguous run of raw samples in a single format.
type Frame struct {
	Format Format
	Data   []byte
}

// Samples returns the number of samples in the frame.
func (fr Frame) Samples() int { return fr.Format.Samples(len(fr.Data)) }

// Duration returns the play time of the frame.
func (fr Frame) Duration() time.Duration { return fr.Format.Duration(len(fr.Data)) }

// Int16s decodes the frame data into int16 samples.
func (fr Frame) Int16s() []int16 {
	out := make([]int16, fr.Samples())
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(fr.Data[i*2:]))
	}
	return out
}

// FromInt16s encodes int16 samples as a little-endian frame in format f.
func FromInt16s(f Format, samples []int16) Frame {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return Frame{Format: f, Data: data}
}
