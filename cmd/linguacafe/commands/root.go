package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/linguacafe/linguacafe/cmd/linguacafe/internal/config"
)

var (
	// Global flags
	verbose bool

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "linguacafe",
	Short: "Practice speaking a language with an AI conversation partner",
	Long: `linguacafe - live voice conversations for language practice.

The agent roleplays a generated scenario in your target language,
speaking and listening in real time. Completed utterances are checked
for grammar, recordings are scored for pronunciation, and finished
conversations are archived for review.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/linguacafe/
  Linux:   ~/.config/linguacafe/
  Windows: %AppData%/linguacafe/

API keys may also come from GEMINI_API_KEY (or GOOGLE_API_KEY) and
OPENAI_API_KEY.

Examples:
  # Serve the browser gateway
  linguacafe serve

  # Practice from the terminal
  linguacafe talk --language French --learner Marie

  # Preview a scenario without starting a conversation
  linguacafe scenario --language Spanish

  # Review past conversations
  linguacafe history list
  linguacafe history show <id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	cfg, err := config.Load()
	if err != nil {
		// Commands that need config get a clear error via GetConfig();
		// commands like 'linguacafe version' keep working.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
