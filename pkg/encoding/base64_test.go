package encoding

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestMarshalProducesStdBase64String(t *testing.T) {
	pcmChunk := StdBase64Data{0x00, 0x01, 0xfe, 0xff}

	b, err := json.Marshal(pcmChunk)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(b), `"AAH+/w=="`; got != want {
		t.Fatalf("Marshal = %s, want %s", got, want)
	}
	if pcmChunk.String() != "AAH+/w==" {
		t.Fatalf("String() = %q", pcmChunk.String())
	}
}

func TestUnmarshalDecodesAndRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "frame payload", input: `"AAH+/w=="`, want: []byte{0x00, 0x01, 0xfe, 0xff}},
		{name: "empty string", input: `""`, want: []byte{}},
		{name: "null leaves nil", input: `null`, want: nil},
		{name: "bare number", input: `48000`, wantErr: true},
		{name: "not base64", input: `"%%%"`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var data StdBase64Data
			err := json.Unmarshal([]byte(tc.input), &data)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s) succeeded, want error", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s): %v", tc.input, err)
			}
			if !bytes.Equal(data, tc.want) {
				t.Fatalf("Unmarshal(%s) = %v, want %v", tc.input, data, tc.want)
			}
		})
	}
}

func TestAudioFrameRoundTrip(t *testing.T) {
	type audioFrame struct {
		Type     string        `json:"type"`
		Audio    StdBase64Data `json:"audio,omitempty"`
		PlayAtMS int64         `json:"play_at_ms,omitempty"`
	}

	// 10ms of silence at 16 kHz mono 16-bit.
	sent := audioFrame{Type: "audio", Audio: make(StdBase64Data, 320), PlayAtMS: 140}
	b, err := json.Marshal(sent)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got audioFrame
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(got.Audio, sent.Audio) {
		t.Fatalf("payload changed across the wire: %d bytes, want %d", len(got.Audio), len(sent.Audio))
	}
	if got.PlayAtMS != sent.PlayAtMS {
		t.Fatalf("play_at_ms = %d, want %d", got.PlayAtMS, sent.PlayAtMS)
	}
}
