package mic

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// Converter resamples a stream of frames from one format to another.
// It is stateful: feeding consecutive frames of the same stream through
// one converter preserves filter continuity across frame boundaries.
type Converter struct {
	src, dst pcm.Format
	rs       resampling.Resampler
}

// NewConverter creates a converter from src to dst.
func NewConverter(src, dst pcm.Format) (*Converter, error) {
	if src == dst {
		return &Converter{src: src, dst: dst}, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.SampleRate()),
		OutputRate: float64(dst.SampleRate()),
		Channels:   dst.Channels(),
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("mic: create resampler: %w", err)
	}
	return &Converter{src: src, dst: dst, rs: rs}, nil
}

// Convert resamples one frame. Output length may differ slightly from
// the exact rate ratio because the filter carries samples across calls.
func (c *Converter) Convert(frame pcm.Frame) (pcm.Frame, error) {
	if frame.Format != c.src {
		return pcm.Frame{}, fmt.Errorf("mic: convert: frame format %v, converter expects %v", frame.Format, c.src)
	}
	if c.rs == nil {
		return frame, nil
	}

	in := frame.Int16s()
	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s) / 32768.0
	}

	output, err := c.rs.Process(input)
	if err != nil {
		return pcm.Frame{}, fmt.Errorf("mic: resample: %w", err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s > 1.0:
			out[i] = 32767
		case s < -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return pcm.FromInt16s(c.dst, out), nil
}
