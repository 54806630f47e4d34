package tutor

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"google.golang.org/genai"
)

var grammarSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"correct": {
			Type:        "boolean",
			Description: "Whether the utterance is grammatically acceptable for a learner at conversational register.",
		},
		"corrected": {
			Type:        "string",
			Description: "The corrected utterance in the target language. Equal to the input when correct.",
		},
		"explanation": {
			Type:        "string",
			Description: "One short sentence explaining the main issue, in English. Empty when correct.",
		},
	},
	Required: []string{"correct", "corrected", "explanation"},
}

var pronunciationSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"score": {
			Type:        "integer",
			Description: "Overall pronunciation score from 0 to 100.",
		},
		"feedback": {
			Type:        "string",
			Description: "One short feedback sentence, in English.",
		},
		"flagged_words": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Words that were mispronounced or unclear.",
		},
	},
	Required: []string{"score", "feedback", "flagged_words"},
}

var scenarioSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"title":         {Type: "string"},
		"description":   {Type: "string", Description: "Two or three sentences setting the scene, in English."},
		"user_role":     {Type: "string"},
		"agent_role":    {Type: "string"},
		"location":      {Type: "string"},
		"system_prompt": {Type: "string", Description: "Persona instruction for the roleplay partner."},
		"opening_line":  {Type: "string", Description: "The partner's first line, in the target language."},
	},
	Required: []string{"title", "description", "user_role", "agent_role", "location", "system_prompt", "opening_line"},
}

// unmarshalJSON unmarshals model output into v, attempting to repair
// malformed JSON before giving up.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return fmt.Errorf("tutor: repair model json: %w", rerr)
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// convSchema converts a JSON schema into the genai schema model.
func convSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Items:       convSchema(schema.Items),
		Required:    schema.Required,
	}
	for _, v := range schema.Enum {
		gs.Enum = append(gs.Enum, fmt.Sprintf("%v", v))
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = convSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
