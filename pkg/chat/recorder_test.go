package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

func TestRecorderAccumulatesFrames(t *testing.T) {
	var forwarded []pcm.Frame
	rec := NewRecorder(func(_ context.Context, frame pcm.Frame) error {
		forwarded = append(forwarded, frame)
		return nil
	})

	if err := rec.Start(pcm.L16Mono16K); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frames := [][]byte{{1, 2, 3, 4}, {5, 6}, {7, 8, 9, 10, 11, 12}}
	for _, data := range frames {
		err := rec.Feed(context.Background(), pcm.Frame{Format: pcm.L16Mono16K, Data: data})
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
	}

	got, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if string(got.Data) != string(want) {
		t.Fatalf("got payload %v, want %v", got.Data, want)
	}
	if got.Samples() != 6 {
		t.Fatalf("got %d samples, want 6", got.Samples())
	}
	if len(forwarded) != 3 {
		t.Fatalf("forwarded %d frames, want 3", len(forwarded))
	}
}

func TestRecorderStateErrors(t *testing.T) {
	rec := NewRecorder(nil)

	err := rec.Feed(context.Background(), pcm.Frame{Format: pcm.L16Mono16K})
	if !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Feed while idle: got %v, want ErrNotRecording", err)
	}
	if _, err := rec.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Stop while idle: got %v, want ErrNotRecording", err)
	}

	if err := rec.Start(pcm.L16Mono16K); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Start(pcm.L16Mono16K); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start: got %v, want ErrAlreadyRecording", err)
	}
}

func TestRecorderRejectsFormatMismatch(t *testing.T) {
	rec := NewRecorder(nil)
	if err := rec.Start(pcm.L16Mono16K); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := rec.Feed(context.Background(), pcm.Frame{Format: pcm.L16Mono48K, Data: []byte{0, 0}})
	if err == nil {
		t.Fatalf("Feed accepted a frame in the wrong format")
	}
}

func TestRecorderStartResetsBuffer(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start(pcm.L16Mono16K)
	rec.Feed(context.Background(), pcm.Frame{Format: pcm.L16Mono16K, Data: []byte{1, 2}})
	rec.Stop()

	rec.Start(pcm.L16Mono16K)
	rec.Feed(context.Background(), pcm.Frame{Format: pcm.L16Mono16K, Data: []byte{3, 4}})
	got, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(got.Data) != string([]byte{3, 4}) {
		t.Fatalf("second utterance carried stale samples: %v", got.Data)
	}
}
