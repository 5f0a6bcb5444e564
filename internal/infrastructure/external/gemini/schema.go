package gemini

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"google.golang.org/genai"
)

// questionSchemaName keys the compiled schema cache.
const questionSchemaName = "quiz-questions"

// questionSchemaDef is the JSON Schema for the model output: an array of
// multiple-choice questions, four options each.
var questionSchemaDef = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "The question text, in Portuguese",
			},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": float64(4),
				"maxItems": float64(4),
			},
			"correct_index": map[string]any{
				"type":        "integer",
				"description": "Zero-based index of the correct option",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Short explanation of the correct answer",
			},
		},
		"required": []any{"prompt", "options", "correct_index", "explanation"},
	},
}

var (
	compiledSchema     *jsonschema.Schema
	compileSchemaOnce  sync.Once
	compileSchemaError error
)

// validateQuestionsJSON validates the raw model output against the
// question schema before it is decoded into domain types.
func validateQuestionsJSON(raw json.RawMessage) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	compiled, err := getCompiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", questionSchemaName, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

func getCompiledSchema() (*jsonschema.Schema, error) {
	compileSchemaOnce.Do(func() {
		defBytes, err := json.Marshal(questionSchemaDef)
		if err != nil {
			compileSchemaError = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var defParsed any
		if err := json.Unmarshal(defBytes, &defParsed); err != nil {
			compileSchemaError = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		schemaURL := fmt.Sprintf("schema://%s.json", questionSchemaName)
		if err := c.AddResource(schemaURL, defParsed); err != nil {
			compileSchemaError = fmt.Errorf("add resource: %w", err)
			return
		}

		compiledSchema, compileSchemaError = c.Compile(schemaURL)
	})
	return compiledSchema, compileSchemaError
}

// buildGeminiSchema converts a JSON Schema definition map to a genai.Schema
// for structured-output generation.
func buildGeminiSchema(def map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := def["type"].(string); ok {
		schema.Type = mapGeminiType(t)
	}
	if desc, ok := def["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for k, v := range props {
			if propDef, ok := v.(map[string]any); ok {
				schema.Properties[k] = buildGeminiSchema(propDef)
			}
		}
	}

	if req, ok := def["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		schema.Items = buildGeminiSchema(items)
	}

	return schema
}

func mapGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
