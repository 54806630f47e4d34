package tutor

import (
	"context"
	"log/slog"
)

// Scenario is a generated roleplay setting for one conversation.
type Scenario struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	UserRole    string `json:"user_role" yaml:"user_role"`
	AgentRole   string `json:"agent_role" yaml:"agent_role"`
	Location    string `json:"location" yaml:"location"`

	// SystemPrompt is the persona instruction driving the live session.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	// OpeningLine is the agent's first utterance, in the target
	// language.
	OpeningLine string `json:"opening_line" yaml:"opening_line"`
}

// FallbackScenario returns the static scenario used when generation
// fails, so a chat can always start.
func FallbackScenario(language string) *Scenario {
	return &Scenario{
		Title:       "Cafe Encounter",
		Description: "You have just sat down in a small neighborhood cafe. The person at the next table strikes up a conversation while you both wait for your orders.",
		UserRole:    "A customer waiting for their coffee",
		AgentRole:   "A friendly regular who loves chatting with strangers",
		Location:    "A small cafe",
		SystemPrompt: "You are a friendly local in a small cafe, chatting with the person at the next table. " +
			"Speak only " + language + ", keep your sentences short and natural, and gently keep the conversation going " +
			"by asking simple questions about the other person. Stay in character at all times.",
		OpeningLine: "",
	}
}

// GenerateOrFallback generates a scenario, masking any failure with the
// fallback so the chat can always start.
func GenerateOrFallback(ctx context.Context, gen ScenarioGenerator, req ScenarioRequest) *Scenario {
	if gen != nil {
		sc, err := gen.GenerateScenario(ctx, req)
		if err == nil && sc != nil && sc.Title != "" {
			return sc
		}
		if err != nil {
			slog.Warn("tutor: scenario generation failed, using fallback", "language", req.Language, "err", err)
		}
	}
	return FallbackScenario(req.Language)
}
