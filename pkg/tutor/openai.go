package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"

	"github.com/linguacafe/linguacafe/pkg/chat"
)

// DefaultOpenAIModel is the completion model used when Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

var (
	_ GrammarChecker    = (*OpenAI)(nil)
	_ ScenarioGenerator = (*OpenAI)(nil)
)

// OpenAI implements the text-only tutoring services (grammar checking
// and scenario generation) against the OpenAI chat completions API.
// Live audio, synthesis, and pronunciation scoring stay on the Gemini
// backend.
type OpenAI struct {
	Client *openai.Client
	Model  string
}

func (o *OpenAI) model() string {
	if o.Model != "" {
		return o.Model
	}
	return DefaultOpenAIModel
}

// CheckGrammar asks the model for a JSON grammar verdict.
func (o *OpenAI) CheckGrammar(ctx context.Context, req GrammarRequest) (*chat.GrammarVerdict, error) {
	system := fmt.Sprintf(
		"You are a %s teacher reviewing one spoken utterance from a roleplay conversation. "+
			"Reply with a JSON object {\"correct\": bool, \"corrected\": string, \"explanation\": string}. "+
			"Judge conversational register; corrected equals the input when correct; "+
			"explanation is one short English sentence, empty when correct.",
		req.Language,
	)
	user := fmt.Sprintf("Scenario: %s\nUtterance: %q", req.Context, req.Text)

	raw, err := o.invokeJSON(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("tutor: check grammar: %w", err)
	}
	var v chat.GrammarVerdict
	if err := unmarshalJSON(raw, &v); err != nil {
		return nil, fmt.Errorf("tutor: check grammar: %w", err)
	}
	return &v, nil
}

// GenerateScenario produces a new roleplay scenario as JSON.
func (o *OpenAI) GenerateScenario(ctx context.Context, req ScenarioRequest) (*Scenario, error) {
	system := fmt.Sprintf(
		"You design roleplay scenarios for practicing spoken %s. "+
			"Reply with a JSON object with keys title, description, user_role, agent_role, "+
			"location, system_prompt, opening_line. The system_prompt must instruct the partner "+
			"to speak only %s and stay in character; the opening_line must be in %s.",
		req.Language, req.Language, req.Language,
	)
	var b strings.Builder
	fmt.Fprintf(&b, "Learner name: %s. Everyday situations only.", req.LearnerName)
	if req.Avoid != "" {
		fmt.Fprintf(&b, " Do not repeat anything like the previous scenario: %s", req.Avoid)
	}

	raw, err := o.invokeJSON(ctx, system, b.String())
	if err != nil {
		return nil, fmt.Errorf("tutor: generate scenario: %w", err)
	}
	var sc Scenario
	if err := unmarshalJSON(raw, &sc); err != nil {
		return nil, fmt.Errorf("tutor: generate scenario: %w", err)
	}
	return &sc, nil
}

func (o *OpenAI) invokeJSON(ctx context.Context, system, user string) ([]byte, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model(),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.NewOpt(system),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.NewOpt(user),
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}
	resp, err := o.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("blocked: %s", choice.Message.Refusal)
	}
	if choice.Message.Content == "" {
		return nil, errors.New("no content")
	}
	return []byte(choice.Message.Content), nil
}
