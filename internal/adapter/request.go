package adapter

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/Davincible/gemini-code-open/internal/upstream"
)

// ToChatMessages converts normalized turns plus an optional system
// instruction into the flat chat-message sequence.
//
// A non-empty system instruction becomes the first message. Each turn is then
// split into three independent groups emitted in a fixed order regardless of
// how its parts were interleaved:
//
//  1. all text parts, newline-joined into one message of the turn's role
//     (user, system and assistant roles only);
//  2. each function response as its own role "tool" message keyed by
//     tool_call_id;
//  3. all function calls collapsed into a single assistant message with null
//     content and a tool_calls array preserving call order.
func ToChatMessages(turns []Turn, systemInstruction string) []upstream.ChatMessage {
	var messages []upstream.ChatMessage

	if systemInstruction != "" {
		messages = append(messages, upstream.ChatMessage{
			Role:    RoleSystem,
			Content: systemInstruction,
		})
	}

	for _, turn := range turns {
		role := flatRole(turn.Role)

		var (
			texts     []string
			responses []*FunctionResponse
			calls     []*FunctionCall
		)

		for _, part := range turn.Parts {
			switch {
			case part.FunctionCall != nil:
				calls = append(calls, part.FunctionCall)
			case part.FunctionResponse != nil:
				responses = append(responses, part.FunctionResponse)
			default:
				texts = append(texts, part.Text)
			}
		}

		if len(texts) > 0 && isTextRole(role) {
			messages = append(messages, upstream.ChatMessage{
				Role:    role,
				Content: strings.Join(texts, "\n"),
			})
		}

		for _, response := range responses {
			messages = append(messages, toolResultMessage(response))
		}

		if len(calls) > 0 {
			messages = append(messages, toolCallMessage(calls))
		}
	}

	return messages
}

func flatRole(role string) string {
	if role == RoleModel || role == RoleAssistant {
		return RoleAssistant
	}

	return role
}

func isTextRole(role string) bool {
	return role == RoleUser || role == RoleSystem || role == RoleAssistant
}

func toolResultMessage(response *FunctionResponse) upstream.ChatMessage {
	content := response.Response.Output
	if response.Response.Error != "" {
		content = "Error: " + response.Response.Error
	}

	return upstream.ChatMessage{
		Role:       RoleTool,
		ToolCallID: response.ID,
		Content:    content,
	}
}

func toolCallMessage(calls []*FunctionCall) upstream.ChatMessage {
	toolCalls := make([]upstream.ToolCall, 0, len(calls))

	for _, call := range calls {
		id := call.ID
		if id == "" {
			// The flat protocol pairs calls and results by id; synthesize
			// one when the structured side omits it.
			id = "call_" + uuid.NewString()
		}

		arguments := "{}"
		if call.Args != nil {
			if data, err := json.Marshal(call.Args); err == nil {
				arguments = string(data)
			}
		}

		toolCalls = append(toolCalls, upstream.ToolCall{
			ID:   id,
			Type: upstream.ToolCallTypeFunction,
			Function: &upstream.ToolCallFunction{
				Name:      call.Name,
				Arguments: arguments,
			},
		})
	}

	return upstream.ChatMessage{
		Role:      RoleAssistant,
		Content:   nil,
		ToolCalls: toolCalls,
	}
}
