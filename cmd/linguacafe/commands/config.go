package commands

import (
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/linguacafe/linguacafe/cmd/linguacafe/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage the configuration file.

All settings live in a single YAML file in the OS config directory.
API keys may also come from GEMINI_API_KEY (or GOOGLE_API_KEY) and
OPENAI_API_KEY, which take precedence over the file.

Examples:
  linguacafe config path
  linguacafe config init
  linguacafe config show
  linguacafe config edit`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "backend\t%s\n", cfg.Backend)
		fmt.Fprintf(w, "language\t%s\n", cfg.Language)
		fmt.Fprintf(w, "learner\t%s\n", cfg.Learner)
		fmt.Fprintf(w, "live_model\t%s\n", cfg.LiveModel)
		fmt.Fprintf(w, "voice\t%s\n", cfg.Voice)
		fmt.Fprintf(w, "listen\t%s\n", cfg.Listen)
		fmt.Fprintf(w, "history_dir\t%s\n", cfg.HistoryDir)
		fmt.Fprintf(w, "gemini_api_key\t%s\n", redact(cfg.GeminiAPIKey))
		fmt.Fprintf(w, "openai_api_key\t%s\n", redact(cfg.OpenAIAPIKey))
		return w.Flush()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		c := exec.Command(editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func redact(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func init() {
	configCmd.AddCommand(configPathCmd, configInitCmd, configShowCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}
