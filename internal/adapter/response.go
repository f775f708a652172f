package adapter

import (
	"encoding/json"

	"github.com/Davincible/gemini-code-open/internal/upstream"
)

// FromCompletion reconstructs a structured response from a complete,
// non-streamed completion. Exactly one candidate is produced from the first
// choice; additional choices are ignored. Non-empty text content wins over
// tool calls. Malformed tool-call arguments degrade to empty args rather
// than failing the whole response.
func FromCompletion(completion *upstream.ChatCompletion) *Response {
	response := &Response{Usage: usageFromCompletion(completion)}

	if completion == nil || len(completion.Choices) == 0 {
		return response
	}

	message := completion.Choices[0].Message
	if message == nil {
		return response
	}

	if text := contentText(message.Content); text != "" {
		response.Parts = append(response.Parts, Part{Text: text})
		return response
	}

	for _, toolCall := range message.ToolCalls {
		call := functionCallFromToolCall(toolCall)
		if call == nil {
			continue
		}

		response.Parts = append(response.Parts, Part{FunctionCall: call})
		response.FunctionCalls = append(response.FunctionCalls, call)
	}

	return response
}

// functionCallFromToolCall maps one completed tool call to a FunctionCall.
// Standard function calls carry JSON arguments; the provider-specific custom
// form carries an opaque string surfaced as args.input. Unrecognized call
// types yield nil and are dropped by the caller.
func functionCallFromToolCall(toolCall upstream.ToolCall) *FunctionCall {
	switch {
	case toolCall.Function != nil && (toolCall.Type == "" || toolCall.Type == upstream.ToolCallTypeFunction):
		return &FunctionCall{
			ID:   toolCall.ID,
			Name: toolCall.Function.Name,
			Args: parseArgs(toolCall.Function.Arguments),
		}
	case toolCall.Custom != nil && toolCall.Type == upstream.ToolCallTypeCustom:
		return &FunctionCall{
			ID:   toolCall.ID,
			Name: toolCall.Custom.Name,
			Args: map[string]any{"input": toolCall.Custom.Input},
		}
	default:
		return nil
	}
}

// parseArgs parses a raw tool-call argument string. Backends routinely emit
// truncated or otherwise invalid JSON under interrupted streams, so any
// parse failure degrades to an empty mapping instead of an error.
func parseArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}

	return args
}

// contentText extracts text from a message or delta content field, which may
// be a plain string or a typed content array. For the array form only the
// first element is inspected; a non-text first element yields nothing.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}

		fragment, ok := v[0].(map[string]any)
		if !ok {
			return ""
		}

		if fragmentType, ok := fragment["type"].(string); ok && fragmentType != "text" {
			return ""
		}

		text, _ := fragment["text"].(string)

		return text
	default:
		return ""
	}
}

func usageFromCompletion(completion *upstream.ChatCompletion) *Usage {
	usage := &Usage{}

	if completion != nil && completion.Usage != nil {
		usage.PromptTokens = completion.Usage.PromptTokens
		usage.CompletionTokens = completion.Usage.CompletionTokens
		usage.TotalTokens = completion.Usage.TotalTokens
	}

	return usage
}
