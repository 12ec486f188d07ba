package loader

// documentSchema is the shape pre-check applied before the typed unmarshal.
// Field-level semantics (references, policies, templates) are validated by
// the executor's static validation, not here.
var documentSchema = map[string]any{
	"type":     "object",
	"required": []string{"name", "stages"},
	"properties": map[string]any{
		"version":     map[string]any{"type": "string"},
		"id":          map[string]any{"type": "string"},
		"name":        map[string]any{"type": "string", "minLength": 3},
		"description": map[string]any{"type": "string"},
		"output":      map[string]any{"type": "boolean"},
		"references": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"workflows":       map[string]any{"type": "object"},
				"apis":            map[string]any{"type": "object"},
				"environmentFile": map[string]any{"type": "string"},
			},
		},
		"input": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name"},
				"properties": map[string]any{
					"name":     map[string]any{"type": "string"},
					"type":     map[string]any{"type": "string"},
					"required": map[string]any{"type": "boolean"},
				},
			},
		},
		"initStage": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variables": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"name"},
					},
				},
				"context": map[string]any{"type": "object"},
			},
		},
		"resilience": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"retries":         map[string]any{"type": "object"},
				"circuitBreakers": map[string]any{"type": "object"},
			},
		},
		"stages": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "kind"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
					"kind": map[string]any{"type": "string"},
				},
			},
		},
		"endStage": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"output":  map[string]any{"type": "object"},
				"context": map[string]any{"type": "object"},
			},
		},
	},
}
