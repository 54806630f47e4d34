package tutor

import (
	"context"
	"errors"
	"testing"
)

type scenarioFunc func(ctx context.Context, req ScenarioRequest) (*Scenario, error)

func (f scenarioFunc) GenerateScenario(ctx context.Context, req ScenarioRequest) (*Scenario, error) {
	return f(ctx, req)
}

func TestGenerateOrFallbackMasksFailure(t *testing.T) {
	gen := scenarioFunc(func(context.Context, ScenarioRequest) (*Scenario, error) {
		return nil, errors.New("service unavailable")
	})
	sc := GenerateOrFallback(context.Background(), gen, ScenarioRequest{Language: "French", LearnerName: "Ada"})
	if sc == nil {
		t.Fatal("expected a scenario")
	}
	if sc.Title != "Cafe Encounter" {
		t.Fatalf("fallback title = %q, want %q", sc.Title, "Cafe Encounter")
	}
	if sc.SystemPrompt == "" {
		t.Fatal("fallback scenario has no system prompt")
	}
}

func TestGenerateOrFallbackNilGenerator(t *testing.T) {
	sc := GenerateOrFallback(context.Background(), nil, ScenarioRequest{Language: "Spanish"})
	if sc.Title != "Cafe Encounter" {
		t.Fatalf("title = %q, want fallback", sc.Title)
	}
}

func TestGenerateOrFallbackPassesThrough(t *testing.T) {
	want := &Scenario{Title: "Lost Luggage", SystemPrompt: "x"}
	gen := scenarioFunc(func(_ context.Context, req ScenarioRequest) (*Scenario, error) {
		if req.Avoid != "a cafe scene" {
			t.Errorf("avoid = %q not forwarded", req.Avoid)
		}
		return want, nil
	})
	sc := GenerateOrFallback(context.Background(), gen, ScenarioRequest{Language: "German", Avoid: "a cafe scene"})
	if sc != want {
		t.Fatalf("got %+v, want generated scenario", sc)
	}
}

func TestUnmarshalJSONRepairsModelOutput(t *testing.T) {
	// Models occasionally emit trailing commas or fence markers.
	raw := "{\"correct\": false, \"corrected\": \"J'ai faim\", \"explanation\": \"Missing apostrophe\",}"
	var v struct {
		Correct   bool   `json:"correct"`
		Corrected string `json:"corrected"`
	}
	if err := unmarshalJSON([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshalJSON error: %v", err)
	}
	if v.Correct || v.Corrected != "J'ai faim" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestConvSchemaShape(t *testing.T) {
	gs := convSchema(grammarSchema)
	if gs == nil || len(gs.Properties) != 3 {
		t.Fatalf("converted schema has %d properties, want 3", len(gs.Properties))
	}
	if gs.Properties["correct"] == nil {
		t.Fatal("missing correct property")
	}
	if len(gs.Required) != 3 {
		t.Fatalf("required = %v, want 3 entries", gs.Required)
	}
}
