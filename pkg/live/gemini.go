package live

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// DefaultLiveModel is the live model used when Config.Model is empty.
const DefaultLiveModel = "gemini-2.0-flash-live-001"

var _ Dialer = (*GeminiDialer)(nil)

// GeminiDialer opens live sessions against the Gemini Live API.
type GeminiDialer struct {
	Client *genai.Client
}

// Dial establishes one live session with audio responses and
// transcription enabled in both directions.
func (d *GeminiDialer) Dial(ctx context.Context, cfg *Config) (Session, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultLiveModel
	}

	lcc := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemPrompt != "" {
		lcc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(cfg.SystemPrompt)},
		}
	}
	if cfg.Voice != "" || cfg.Language != "" {
		sc := &genai.SpeechConfig{LanguageCode: cfg.Language}
		if cfg.Voice != "" {
			sc.VoiceConfig = &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			}
		}
		lcc.SpeechConfig = sc
	}

	sess, err := d.Client.Live.Connect(ctx, model, lcc)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return nil, fmt.Errorf("live: connect %s: %w", model, err)
	}
	return &geminiSession{sess: sess}, nil
}

type geminiSession struct {
	sess *genai.Session

	mu     sync.Mutex
	closed bool
}

func (s *geminiSession) SendAudio(_ context.Context, frame pcm.Frame) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	err := s.sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     frame.Data,
			MIMEType: frame.Format.MIMEType(),
		},
	})
	if err != nil {
		return fmt.Errorf("live: send audio: %w", err)
	}
	return nil
}

func (s *geminiSession) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	err := s.sess.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
	})
	if err != nil {
		return fmt.Errorf("live: send text: %w", err)
	}
	return nil
}

// Recv maps one server message to one Event. Messages without any
// content of interest (setup acks, tool traffic) are skipped.
func (s *geminiSession) Recv() (*Event, error) {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrSessionClosed
		}

		msg, err := s.sess.Receive()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("live: receive: %w", err)
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}

		evt := &Event{
			TurnComplete: sc.TurnComplete,
			Interrupted:  sc.Interrupted,
		}
		if sc.InputTranscription != nil {
			evt.UserTranscript = sc.InputTranscription.Text
		}
		if sc.OutputTranscription != nil {
			evt.AgentTranscript = sc.OutputTranscription.Text
		}
		if sc.ModelTurn != nil {
			var audio []byte
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil {
					audio = append(audio, p.InlineData.Data...)
				}
			}
			if len(audio) > 0 {
				evt.Audio = &pcm.Frame{Format: pcm.L16Mono24K, Data: audio}
			}
		}
		if evt.Audio == nil && evt.UserTranscript == "" && evt.AgentTranscript == "" &&
			!evt.TurnComplete && !evt.Interrupted {
			continue
		}
		return evt, nil
	}
}

func (s *geminiSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sess.Close()
}
