package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/gemini-code-open/internal/upstream"
)

func TestToChatMessages_TextOnly(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Parts: []Part{{Text: "hello"}}},
		{Role: RoleModel, Parts: []Part{{Text: "hi there"}}},
	}

	messages := ToChatMessages(turns, "")
	require.Len(t, messages, 2)

	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "hi there", messages[1].Content)
}

func TestToChatMessages_SystemInstructionFirst(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Parts: []Part{{Text: "hello"}}},
	}

	messages := ToChatMessages(turns, "be terse")
	require.Len(t, messages, 2)

	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, "be terse", messages[0].Content)
	assert.Equal(t, RoleUser, messages[1].Role)
}

func TestToChatMessages_TextPartsJoined(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Parts: []Part{{Text: "line one"}, {Text: "line two"}}},
	}

	messages := ToChatMessages(turns, "")
	require.Len(t, messages, 1)
	assert.Equal(t, "line one\nline two", messages[0].Content)
}

func TestToChatMessages_GroupOrdering(t *testing.T) {
	// Parts arrive interleaved; output groups are fixed: text, then tool
	// results, then the collapsed tool-call message.
	turns := []Turn{
		{Role: RoleModel, Parts: []Part{
			{FunctionCall: &FunctionCall{ID: "call_1", Name: "read_file", Args: map[string]any{"path": "/tmp/a"}}},
			{Text: "working on it"},
			{FunctionResponse: &FunctionResponse{ID: "call_0", Name: "ls", Response: FunctionResponsePayload{Output: "a b c"}}},
			{FunctionCall: &FunctionCall{ID: "call_2", Name: "write_file", Args: map[string]any{"path": "/tmp/b"}}},
		}},
	}

	messages := ToChatMessages(turns, "")
	require.Len(t, messages, 3)

	assert.Equal(t, RoleAssistant, messages[0].Role)
	assert.Equal(t, "working on it", messages[0].Content)

	assert.Equal(t, RoleTool, messages[1].Role)
	assert.Equal(t, "call_0", messages[1].ToolCallID)
	assert.Equal(t, "a b c", messages[1].Content)

	assert.Equal(t, RoleAssistant, messages[2].Role)
	assert.Nil(t, messages[2].Content)
	require.Len(t, messages[2].ToolCalls, 2)
	assert.Equal(t, "call_1", messages[2].ToolCalls[0].ID)
	assert.Equal(t, "read_file", messages[2].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"path": "/tmp/a"}`, messages[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_2", messages[2].ToolCalls[1].ID)
}

func TestToChatMessages_ToolResultError(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Parts: []Part{
			{FunctionResponse: &FunctionResponse{
				ID:       "call_9",
				Name:     "read_file",
				Response: FunctionResponsePayload{Error: "no such file"},
			}},
		}},
	}

	messages := ToChatMessages(turns, "")
	require.Len(t, messages, 1)
	assert.Equal(t, RoleTool, messages[0].Role)
	assert.Equal(t, "Error: no such file", messages[0].Content)
}

func TestToChatMessages_SynthesizedCallID(t *testing.T) {
	turns := []Turn{
		{Role: RoleModel, Parts: []Part{
			{FunctionCall: &FunctionCall{Name: "ping"}},
		}},
	}

	messages := ToChatMessages(turns, "")
	require.Len(t, messages, 1)
	require.Len(t, messages[0].ToolCalls, 1)

	call := messages[0].ToolCalls[0]
	assert.NotEmpty(t, call.ID)
	assert.Contains(t, call.ID, "call_")
	assert.Equal(t, upstream.ToolCallTypeFunction, call.Type)
	assert.Equal(t, "{}", call.Function.Arguments)
}

func TestToChatMessages_ToolRoleTextDropped(t *testing.T) {
	// A "tool" role turn only carries function responses onward; stray text
	// parts on it have no flat-protocol home.
	turns := []Turn{
		{Role: RoleTool, Parts: []Part{
			{Text: "ignored"},
			{FunctionResponse: &FunctionResponse{ID: "call_3", Response: FunctionResponsePayload{Output: "ok"}}},
		}},
	}

	messages := ToChatMessages(turns, "")
	require.Len(t, messages, 1)
	assert.Equal(t, RoleTool, messages[0].Role)
	assert.Equal(t, "ok", messages[0].Content)
}
