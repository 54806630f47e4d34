// Package wavio converts raw PCM frames to and from the minimal WAV
// container used for pronunciation-scoring submissions, turn storage,
// and transcript export.
package wavio

import (
	"bytes"
	"fmt"
	"io"

	wav "github.com/youpy/go-wav"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// Encode wraps a raw PCM frame in a WAV container.
func Encode(fr pcm.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := wav.NewWriter(
		&buf,
		uint32(fr.Samples()),
		uint16(fr.Format.Channels()),
		uint32(fr.Format.SampleRate()),
		uint16(fr.Format.Depth()),
	)
	if _, err := w.Write(fr.Data); err != nil {
		return nil, fmt.Errorf("wavio: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode unwraps a WAV container into a raw PCM frame. Only the
// uncompressed mono 16-bit formats used by the pipeline are accepted.
func Decode(data []byte) (pcm.Frame, error) {
	r := wav.NewReader(bytes.NewReader(data))
	wf, err := r.Format()
	if err != nil {
		return pcm.Frame{}, fmt.Errorf("wavio: read format: %w", err)
	}
	if wf.AudioFormat != wav.AudioFormatPCM {
		return pcm.Frame{}, fmt.Errorf("wavio: unsupported audio format %d", wf.AudioFormat)
	}
	if wf.NumChannels != 1 || wf.BitsPerSample != 16 {
		return pcm.Frame{}, fmt.Errorf("wavio: unsupported layout: %d channels, %d bits", wf.NumChannels, wf.BitsPerSample)
	}

	format, err := formatForRate(int(wf.SampleRate))
	if err != nil {
		return pcm.Frame{}, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return pcm.Frame{}, fmt.Errorf("wavio: read data: %w", err)
	}
	return pcm.Frame{Format: format, Data: raw}, nil
}

func formatForRate(rate int) (pcm.Format, error) {
	switch rate {
	case 16000:
		return pcm.L16Mono16K, nil
	case 24000:
		return pcm.L16Mono24K, nil
	case 48000:
		return pcm.L16Mono48K, nil
	}
	return 0, fmt.Errorf("wavio: unsupported sample rate %d", rate)
}
