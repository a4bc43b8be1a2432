// File: internal/llmclient/schema.go
package llmclient

import (
	"google.golang.org/genai"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

// actionFormatSchema builds the JSON schema advertised to Ollama through the
// chat API's format field. One variant per action shape keeps required fields
// enforced at generation time instead of only at parse time.
func actionFormatSchema() map[string]any {
	return map[string]any{
		"oneOf": []any{
			variant(
				[]string{"action", "coordinate"},
				map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{
							string(schemas.ActionLeftClick),
							string(schemas.ActionDoubleClick),
							string(schemas.ActionTripleClick),
							string(schemas.ActionRightClick),
							string(schemas.ActionMiddleClick),
							string(schemas.ActionMouseMove),
						},
					},
					"coordinate": coordinateProperty("(x, y) target on the 1000x1000 grid."),
				},
			),
			variant(
				[]string{"action", "start_coordinate", "coordinate"},
				map[string]any{
					"action":           map[string]any{"type": "string", "const": string(schemas.ActionLeftClickDrag)},
					"start_coordinate": coordinateProperty("(x, y) where the drag starts."),
					"coordinate":       coordinateProperty("(x, y) where the drag ends."),
				},
			),
			variant(
				[]string{"action", "text"},
				map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{string(schemas.ActionTypeText), string(schemas.ActionAnswer)},
					},
					"text": map[string]any{"type": "string", "description": "Text to type, or the answer to report."},
				},
			),
			variant(
				[]string{"action", "keys"},
				map[string]any{
					"action": map[string]any{"type": "string", "const": string(schemas.ActionKey)},
					"keys": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": `Keys to press in order, e.g. ["ctrl","a"] or ["enter"].`,
					},
				},
			),
			variant(
				[]string{"action", "pixels"},
				map[string]any{
					"action": map[string]any{"type": "string", "const": string(schemas.ActionScroll)},
					"pixels": map[string]any{
						"type":        "integer",
						"description": "Scroll amount. Positive scrolls up, negative scrolls down.",
					},
					"coordinate": coordinateProperty("Optional (x, y) anchor for the wheel event."),
				},
			),
			variant(
				[]string{"action", "time"},
				map[string]any{
					"action": map[string]any{"type": "string", "const": string(schemas.ActionWait)},
					"time":   map[string]any{"type": "number", "description": "Seconds to wait."},
				},
			),
			variant(
				[]string{"action"},
				map[string]any{
					"action": map[string]any{"type": "string", "const": string(schemas.ActionTerminate)},
				},
			),
		},
	}
}

func coordinateProperty(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "number"},
		"minItems":    2,
		"maxItems":    2,
		"description": desc,
	}
}

// variant assembles one oneOf branch. Every branch admits the optional
// reasoning field.
func variant(required []string, props map[string]any) map[string]any {
	props["reasoning"] = map[string]any{
		"type":        "string",
		"description": "Brief explanation of this step.",
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// geminiActionSchema mirrors the action wire format as a typed genai schema.
// The Gemini response schema language has no discriminated unions, so this is
// a single flat object with action as the only required field; strict per-kind
// validation still happens in ParseAction.
func geminiActionSchema() *genai.Schema {
	kinds := make([]string, 0, len(schemas.AllActionKinds))
	for _, k := range schemas.AllActionKinds {
		kinds = append(kinds, string(k))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"action":           {Type: genai.TypeString, Enum: kinds},
			"coordinate":       geminiCoordinateSchema("(x, y) target on the 1000x1000 grid."),
			"start_coordinate": geminiCoordinateSchema("(x, y) where a drag starts."),
			"text":             {Type: genai.TypeString},
			"keys":             {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"pixels":           {Type: genai.TypeNumber},
			"time":             {Type: genai.TypeNumber},
			"reasoning":        {Type: genai.TypeString},
		},
		Required: []string{"action"},
	}
}

func geminiCoordinateSchema(desc string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       &genai.Schema{Type: genai.TypeNumber},
		MinItems:    genai.Ptr(int64(2)),
		MaxItems:    genai.Ptr(int64(2)),
		Description: desc,
	}
}
