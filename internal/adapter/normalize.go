package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Davincible/gemini-code-open/internal/upstream"
)

// NormalizeContents canonicalizes the heterogeneous "contents" input into an
// ordered sequence of turns. Accepted shapes: a bare string (one user turn
// with one text part), a single part-like object without a "parts" field
// (wrapped as a user turn), a full turn object, or an array mixing any of
// the above with order preserved.
func NormalizeContents(raw json.RawMessage) ([]Turn, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] != '[' {
		turn, err := normalizeElement(trimmed)
		if err != nil {
			return nil, err
		}

		return []Turn{turn}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, fmt.Errorf("decode contents array: %w", err)
	}

	turns := make([]Turn, 0, len(elements))

	for i, element := range elements {
		turn, err := normalizeElement(bytes.TrimSpace(element))
		if err != nil {
			return nil, fmt.Errorf("contents[%d]: %w", i, err)
		}

		turns = append(turns, turn)
	}

	return turns, nil
}

func normalizeElement(raw []byte) (Turn, error) {
	if len(raw) == 0 {
		return Turn{}, fmt.Errorf("empty contents element")
	}

	// Bare string becomes a single-text user turn.
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Turn{}, fmt.Errorf("decode text content: %w", err)
		}

		return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}, nil
	}

	if raw[0] != '{' {
		return Turn{}, fmt.Errorf("unsupported contents element shape")
	}

	// Probe for a "parts" field to tell a turn object from a bare part.
	var probe struct {
		Parts json.RawMessage `json:"parts"`
	}

	if err := json.Unmarshal(raw, &probe); err != nil {
		return Turn{}, fmt.Errorf("decode contents element: %w", err)
	}

	if len(bytes.TrimSpace(probe.Parts)) > 0 && !bytes.Equal(bytes.TrimSpace(probe.Parts), []byte("null")) {
		var turn Turn
		if err := json.Unmarshal(raw, &turn); err != nil {
			return Turn{}, fmt.Errorf("decode turn: %w", err)
		}

		if turn.Role == "" {
			turn.Role = RoleUser
		}

		return turn, nil
	}

	var part Part
	if err := json.Unmarshal(raw, &part); err != nil {
		return Turn{}, fmt.Errorf("decode part: %w", err)
	}

	return Turn{Role: RoleUser, Parts: []Part{part}}, nil
}

// NormalizeSystemInstruction flattens the optional system instruction, which
// arrives either as a bare string or as a content object with text parts.
func NormalizeSystemInstruction(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", fmt.Errorf("decode system instruction: %w", err)
		}

		return text, nil
	}

	var content Content
	if err := json.Unmarshal(trimmed, &content); err != nil {
		return "", fmt.Errorf("decode system instruction: %w", err)
	}

	var texts []string

	for _, part := range content.Parts {
		if part.IsText() && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	return strings.Join(texts, "\n"), nil
}

// ExtractTools flattens tool declarations into the flat tool-schema list.
// It returns nil, not an empty slice, when no function declarations exist so
// callers can omit the tools parameter entirely; some backends reject an
// empty tools array outright.
func ExtractTools(decls []ToolDeclaration) []upstream.Tool {
	var tools []upstream.Tool

	for _, decl := range decls {
		for _, fn := range decl.FunctionDeclarations {
			tool := upstream.Tool{
				Type: upstream.ToolCallTypeFunction,
				Function: upstream.ToolFunction{
					Name:        fn.Name,
					Description: fn.Description,
				},
			}

			if fn.Parameters != nil {
				tool.Function.Parameters = sanitizeSchemaObject(fn.Parameters)
			}

			tools = append(tools, tool)
		}
	}

	return tools
}

// sanitizeSchemaObject rewrites a JSON-Schema parameter tree for backend
// compatibility: every "type" value is lower-cased and the minLength and
// minItems constraints are dropped, recursively through nested objects and
// arrays. All other keys pass through untouched. The input is not mutated.
func sanitizeSchemaObject(schema map[string]any) map[string]any {
	result := make(map[string]any, len(schema))

	for key, value := range schema {
		if key == "minLength" || key == "minItems" {
			continue
		}

		if key == "type" {
			if typeName, ok := value.(string); ok {
				result[key] = strings.ToLower(typeName)
				continue
			}
		}

		result[key] = sanitizeSchemaValue(value)
	}

	return result
}

func sanitizeSchemaValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeSchemaObject(v)
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = sanitizeSchemaValue(item)
		}

		return result
	default:
		return value
	}
}
