package upstream

// Wire shapes for the OpenAI-style chat-completions protocol. Only the
// fields this adapter reads or writes are modeled.

const (
	ToolCallTypeFunction = "function"
	ToolCallTypeCustom   = "custom"
)

// ChatRequest is the request body for the chat-completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []Tool        `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatMessage is one flat role/content message. Content is any because the
// protocol allows string, null (assistant tool-call messages), or an array of
// typed fragments on inbound deltas.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Tool declares one callable function to the backend.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function payload of a Tool declaration.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a completed tool invocation on a message. Arguments stay a raw
// JSON string at this boundary; parsing happens in the adapter.
type ToolCall struct {
	ID       string              `json:"id,omitempty"`
	Type     string              `json:"type,omitempty"`
	Function *ToolCallFunction   `json:"function,omitempty"`
	Custom   *CustomToolCallSpec `json:"custom,omitempty"`
}

// ToolCallFunction holds a function call's name and serialized arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CustomToolCallSpec is the provider-specific custom call form: a name plus
// an opaque string input instead of JSON arguments.
type CustomToolCallSpec struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

// ChatCompletion is a complete non-streamed response.
type ChatCompletion struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// Usage is the backend token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one streamed partial response.
type ChatCompletionChunk struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is the first-choice view of a streamed chunk.
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        *Delta `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the incremental payload of a chunk. Content is any because some
// backends send plain strings and others wrap text fragments in a typed
// content array.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   any             `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is one fragment of an in-progress tool call, tagged with the
// call index it belongs to.
type ToolCallDelta struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *ToolFunctionDelta `json:"function,omitempty"`
}

// ToolFunctionDelta carries partial name or argument text for a call.
type ToolFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
