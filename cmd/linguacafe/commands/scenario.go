package commands

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/linguacafe/linguacafe/pkg/tutor"
)

var (
	scenarioLanguage string
	scenarioLearner  string
	scenarioAvoid    string
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Generate and print a roleplay scenario",
	Long: `Scenario generates a roleplay setting without starting a conversation.

Pass --avoid with a previous scenario's description to get something
different. When generation fails the static fallback scenario is
printed instead.`,
	RunE: runScenario,
}

func init() {
	scenarioCmd.Flags().StringVar(&scenarioLanguage, "language", "", "target language (overrides config)")
	scenarioCmd.Flags().StringVar(&scenarioLearner, "learner", "", "learner name woven into the scenario")
	scenarioCmd.Flags().StringVar(&scenarioAvoid, "avoid", "", "previous scenario to steer away from")
	rootCmd.AddCommand(scenarioCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	language := scenarioLanguage
	if language == "" {
		language = cfg.Language
	}
	learner := scenarioLearner
	if learner == "" {
		learner = cfg.Learner
	}

	svc, err := buildServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	sc := tutor.GenerateOrFallback(cmd.Context(), svc.scenarios, tutor.ScenarioRequest{
		Language:    language,
		LearnerName: learner,
		Avoid:       scenarioAvoid,
	})
	out, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("scenario: encode: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
