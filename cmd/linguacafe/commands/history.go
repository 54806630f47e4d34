package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linguacafe/linguacafe/pkg/chat"
	"github.com/linguacafe/linguacafe/pkg/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review archived conversations",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one conversation's annotated transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id> <dir>",
	Short: "Write a conversation's recordings as WAV files",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistoryExport,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one archived conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum conversations to list")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyExportCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func withHistory(fn func(*history.Store) error) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withHistory(func(store *history.Store) error {
		recs, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}
		for _, rec := range recs {
			fmt.Printf("%s  %s  %-10s %s (%d turns)\n",
				rec.StartedAt.Format("2006-01-02 15:04"),
				rec.ID, rec.Language, rec.Scenario, len(rec.Turns))
		}
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withHistory(func(store *history.Store) error {
		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s — %s (%s)\n", rec.Scenario, rec.Language,
			rec.StartedAt.Format("2006-01-02 15:04"))
		fmt.Println(strings.Repeat("-", 40))
		for _, t := range rec.Turns {
			who := "agent"
			if t.Role == chat.RoleUser {
				who = "you"
			}
			fmt.Printf("%-5s %s\n", who, t.Text)
			if t.Grammar != nil && !t.Grammar.Correct {
				fmt.Printf("      ✗ %s\n", t.Grammar.Corrected)
				if t.Grammar.Explanation != "" {
					fmt.Printf("        %s\n", t.Grammar.Explanation)
				}
			}
			if t.Pronunciation != nil {
				fmt.Printf("      ♪ %d/100", t.Pronunciation.Score)
				if len(t.Pronunciation.FlaggedWords) > 0 {
					fmt.Printf("  practice: %s", strings.Join(t.Pronunciation.FlaggedWords, ", "))
				}
				fmt.Println()
			}
		}
		return nil
	})
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	return withHistory(func(store *history.Store) error {
		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		dir := args[1]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create export dir: %w", err)
		}
		n := 0
		for i, t := range rec.Turns {
			if len(t.Audio) == 0 {
				continue
			}
			path := fmt.Sprintf("%s/turn-%03d.wav", dir, i+1)
			if err := os.WriteFile(path, t.Audio, 0o644); err != nil {
				return fmt.Errorf("history: write %s: %w", path, err)
			}
			n++
		}
		fmt.Printf("Exported %d recordings to %s\n", n, dir)
		return nil
	})
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	return withHistory(func(store *history.Store) error {
		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted", args[0])
		return nil
	})
}
