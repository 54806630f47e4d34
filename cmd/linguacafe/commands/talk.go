package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/linguacafe/linguacafe/cmd/linguacafe/internal/config"
	"github.com/linguacafe/linguacafe/pkg/audio/mic"
	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
	"github.com/linguacafe/linguacafe/pkg/audio/player"
	"github.com/linguacafe/linguacafe/pkg/chat"
	"github.com/linguacafe/linguacafe/pkg/history"
	"github.com/linguacafe/linguacafe/pkg/live"
	"github.com/linguacafe/linguacafe/pkg/tutor"
)

var (
	talkLanguage string
	talkLearner  string
	talkNoSave   bool
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Practice a conversation from the terminal",
	Long: `Talk runs a live voice conversation in the terminal.

A scenario is generated for the session and the agent opens the
conversation in the target language. Press Enter to start and stop
recording your reply; type instead of speaking to send text.

Controls:
  Enter   start / stop recording
  r       replay the agent's last utterance
  q       end the conversation
  <text>  send a typed reply`,
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().StringVar(&talkLanguage, "language", "", "target language (overrides config)")
	talkCmd.Flags().StringVar(&talkLearner, "learner", "", "learner name woven into the scenario")
	talkCmd.Flags().BoolVar(&talkNoSave, "no-save", false, "do not archive this conversation")
	rootCmd.AddCommand(talkCmd)
}

// talkStyles holds the transcript color scheme.
type talkStyles struct {
	agent   lipgloss.Style
	user    lipgloss.Style
	correct lipgloss.Style
	wrong   lipgloss.Style
	dim     lipgloss.Style
	title   lipgloss.Style
}

func newTalkStyles() talkStyles {
	return talkStyles{
		agent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		user:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
		correct: lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")),
		wrong:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		title:   lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#00ff9f")),
	}
}

// transcriptPrinter turns coordinator updates into transcript lines.
// Each turn prints once when it completes; annotations print as they
// attach afterwards.
type transcriptPrinter struct {
	styles talkStyles

	mu        sync.Mutex
	printed   map[string]int // turn ID -> stages already printed
	lastAgent string
}

const (
	stageText = 1 << iota
	stageGrammar
	stagePronunciation
)

func newTranscriptPrinter(styles talkStyles) *transcriptPrinter {
	return &transcriptPrinter{styles: styles, printed: make(map[string]int)}
}

func (p *transcriptPrinter) handle(u chat.Update) {
	if u.Status != "" {
		fmt.Println(p.styles.dim.Render("· " + u.Status))
	}
	t := u.Turn
	if t == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	done := p.printed[t.ID]

	if !t.Streaming && t.Text != "" && done&stageText == 0 {
		done |= stageText
		label := p.styles.agent.Render("agent")
		if t.Role == chat.RoleUser {
			label = p.styles.user.Render("you  ")
		} else {
			p.lastAgent = t.ID
		}
		fmt.Printf("%s %s\n", label, t.Text)
	}
	if t.Grammar != nil && done&stageGrammar == 0 {
		done |= stageGrammar
		if t.Grammar.Correct {
			fmt.Println("      " + p.styles.correct.Render("✓ grammar ok"))
		} else {
			fmt.Println("      " + p.styles.wrong.Render("✗ "+t.Grammar.Corrected))
			if t.Grammar.Explanation != "" {
				fmt.Println("      " + p.styles.dim.Render(t.Grammar.Explanation))
			}
		}
	}
	if t.Pronunciation != nil && done&stagePronunciation == 0 {
		done |= stagePronunciation
		line := fmt.Sprintf("♪ pronunciation %d/100", t.Pronunciation.Score)
		if len(t.Pronunciation.FlaggedWords) > 0 {
			line += " — practice: " + strings.Join(t.Pronunciation.FlaggedWords, ", ")
		}
		fmt.Println("      " + p.styles.dim.Render(line))
		if t.Pronunciation.Feedback != "" {
			fmt.Println("      " + p.styles.dim.Render(t.Pronunciation.Feedback))
		}
	}
	p.printed[t.ID] = done
}

// lastAgentTurn returns the most recent completed agent turn ID.
func (p *transcriptPrinter) lastAgentTurn() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAgent
}

func runTalk(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	language := talkLanguage
	if language == "" {
		language = cfg.Language
	}
	learner := talkLearner
	if learner == "" {
		learner = cfg.Learner
	}

	ctx := cmd.Context()
	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}

	styles := newTalkStyles()
	sc := tutor.GenerateOrFallback(ctx, svc.scenarios, tutor.ScenarioRequest{
		Language:    language,
		LearnerName: learner,
	})
	fmt.Println(styles.title.Render(sc.Title))
	fmt.Println(styles.dim.Render(sc.Description))
	fmt.Println(styles.dim.Render("You are: " + sc.UserRole))
	fmt.Println()

	if err := mic.Init(); err != nil {
		return fmt.Errorf("talk: %w", err)
	}
	defer mic.Terminate()

	capture, err := mic.OpenCapture(pcm.L16Mono16K)
	if err != nil {
		return fmt.Errorf("talk: open microphone: %w", err)
	}
	defer capture.Close()

	speaker, err := mic.OpenSpeaker(pcm.L16Mono48K)
	if err != nil {
		return fmt.Errorf("talk: open speaker: %w", err)
	}
	defer speaker.Close()

	printer := newTranscriptPrinter(styles)
	co := chat.NewCoordinator(chat.CoordinatorConfig{
		Dialer: svc.dialer,
		Session: live.Config{
			Model:        svc.liveModel,
			SystemPrompt: sc.SystemPrompt,
			Voice:        svc.voice,
			Language:     language,
		},
		Player:     player.New(speaker),
		Grammar:    talkGrammarFunc(svc, language, sc),
		Pronounce:  talkPronounceFunc(svc, language),
		Synthesize: talkSynthesizeFunc(svc),
		OnUpdate:   printer.handle,
	})

	if err := co.Start(ctx); err != nil {
		return fmt.Errorf("talk: %w", err)
	}
	defer co.Close()
	startedAt := time.Now()

	if sc.OpeningLine != "" {
		if err := co.Prime(ctx, "Open the conversation by saying: "+sc.OpeningLine); err != nil {
			slog.Warn("talk: opening line", "err", err)
		}
	}

	// The microphone pumps continuously; frames outside a recording
	// window are dropped by the recorder.
	go func() {
		for {
			frame, err := capture.ReadFrame()
			if err != nil {
				if !errors.Is(err, mic.ErrClosed) {
					slog.Warn("talk: microphone read", "err", err)
				}
				return
			}
			err = co.FeedFrame(ctx, frame)
			if err != nil && !errors.Is(err, chat.ErrNotRecording) && !errors.Is(err, chat.ErrNotConnected) {
				slog.Warn("talk: forward frame", "err", err)
			}
		}
	}()

	fmt.Println(styles.dim.Render("Enter: record/stop · r: replay · q: quit"))
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch line {
		case "q":
			return archiveTalk(cfg, co, sc, language, startedAt)
		case "":
			if co.Recording() {
				if err := co.StopRecording(ctx); err != nil {
					fmt.Println(styles.dim.Render("· " + err.Error()))
				} else {
					fmt.Println(styles.dim.Render("· recording stopped"))
				}
			} else {
				if err := co.StartRecording(pcm.L16Mono16K); err != nil {
					fmt.Println(styles.dim.Render("· " + err.Error()))
				} else {
					fmt.Println(styles.dim.Render("· recording — press Enter to stop"))
				}
			}
		case "r":
			id := printer.lastAgentTurn()
			if id == "" {
				fmt.Println(styles.dim.Render("· nothing to replay yet"))
				continue
			}
			if err := co.Replay(ctx, id); err != nil {
				fmt.Println(styles.dim.Render("· replay: " + err.Error()))
			}
		default:
			if err := co.SendText(ctx, line); err != nil {
				fmt.Println(styles.dim.Render("· " + err.Error()))
			}
		}
	}
	return archiveTalk(cfg, co, sc, language, startedAt)
}

// archiveTalk saves the finished conversation unless --no-save is set.
func archiveTalk(cfg *config.Config, co *chat.Coordinator, sc *tutor.Scenario, language string, startedAt time.Time) error {
	turns := co.Conversation().Turns()
	if talkNoSave || len(turns) == 0 {
		return nil
	}
	store, err := openHistory(cfg)
	if err != nil {
		slog.Warn("talk: archive", "err", err)
		return nil
	}
	defer store.Close()

	rec := &history.Record{
		ID:        uuid.NewString(),
		Language:  language,
		Scenario:  sc.Title,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		Turns:     turns,
	}
	if err := store.Save(context.Background(), rec); err != nil {
		slog.Warn("talk: archive", "err", err)
		return nil
	}
	fmt.Println("Saved as " + rec.ID)
	return nil
}

func talkGrammarFunc(svc *services, language string, sc *tutor.Scenario) chat.GrammarFunc {
	if svc.grammar == nil {
		return nil
	}
	return func(ctx context.Context, text string) (*chat.GrammarVerdict, error) {
		return svc.grammar.CheckGrammar(ctx, tutor.GrammarRequest{
			Language: language,
			Text:     text,
			Context:  sc.Description,
		})
	}
}

func talkPronounceFunc(svc *services, language string) chat.PronounceFunc {
	if svc.pronounce == nil {
		return nil
	}
	return func(ctx context.Context, wavPayload []byte) (*chat.Pronunciation, error) {
		return svc.pronounce.ScorePronunciation(ctx, language, wavPayload)
	}
}

func talkSynthesizeFunc(svc *services) chat.SynthesizeFunc {
	if svc.synthesize == nil {
		return nil
	}
	return func(ctx context.Context, text string) (pcm.Frame, error) {
		return svc.synthesize.Synthesize(ctx, text)
	}
}
