package prompts

// UnitEnvelopeSchemaName is the schema name sent to providers that support
// named structured output.
const UnitEnvelopeSchemaName = "unit_envelope"

// UnitEnvelopeSchema describes the answer to a generation request. Every
// property is required; an unused sounds list is sent as [].
func UnitEnvelopeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"unitName":   map[string]any{"type": "string"},
			"iniContent": map[string]any{"type": "string"},
			"images": map[string]any{
				"type":  "array",
				"items": imageRequestSchema(),
			},
			"sounds": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"unitName", "iniContent", "images", "sounds"},
		"additionalProperties": false,
	}
}

func imageRequestSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"prompt": map[string]any{"type": "string"},
		},
		"required":             []string{"name", "prompt"},
		"additionalProperties": false,
	}
}
