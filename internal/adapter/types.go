package adapter

import "encoding/json"

const (
	RoleUser      = "user"
	RoleModel     = "model"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"

	// FinishReasonToolCalls is the flat-protocol signal that a streamed turn
	// ended because the model emitted tool calls.
	FinishReasonToolCalls = "tool_calls"
)

// Turn is one role-attributed unit of conversation. Turns are produced by
// NormalizeContents and are not mutated afterwards.
type Turn struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is the smallest structured unit within a turn. Exactly one of the
// three variants is populated; decoding validates the shape once at the
// boundary so downstream code never re-probes raw maps.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// IsText reports whether the part carries text content. A part whose other
// variants are unset is treated as text even when the string is empty.
func (p Part) IsText() bool {
	return p.FunctionCall == nil && p.FunctionResponse == nil
}

// FunctionCall is a model-initiated tool invocation.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the result of a prior tool invocation back to the
// model. The payload holds either an output or an error, mirroring the
// functionResponse.response wire object.
type FunctionResponse struct {
	ID       string                  `json:"id,omitempty"`
	Name     string                  `json:"name,omitempty"`
	Response FunctionResponsePayload `json:"response,omitempty"`
}

// FunctionResponsePayload is the body of a FunctionResponse.
type FunctionResponsePayload struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FunctionDeclaration describes one callable tool offered to the model.
// Parameters is a JSON-Schema object; it is sanitized for backend
// compatibility before leaving the adapter.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolDeclaration groups function declarations the way the structured
// protocol nests them under "tools".
type ToolDeclaration struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// GenerationConfig carries the sampling parameters of an inbound request.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// GenerateRequest is the inbound content-generation request. Contents is kept
// raw because the field accepts a bare string, a single part or turn object,
// or an array mixing any of those; NormalizeContents resolves the shape.
type GenerateRequest struct {
	Model             string            `json:"model,omitempty"`
	Contents          json.RawMessage   `json:"contents"`
	SystemInstruction json.RawMessage   `json:"systemInstruction,omitempty"`
	Tools             []ToolDeclaration `json:"tools,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Usage mirrors the backend token accounting with absent fields as zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is one reconstructed structured response. FunctionCalls is a
// derived view over the function-call parts, populated at construction.
type Response struct {
	Parts         []Part
	FunctionCalls []*FunctionCall
	Usage         *Usage
}

// GenerateContentResponse is the wire form of a Response.
type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

// Candidate is a single generated candidate; this adapter always produces
// exactly one.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// Content is a role-attributed parts container on the wire.
type Content struct {
	Parts []Part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

// UsageMetadata is the wire form of Usage.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// CountTokensResponse is the wire form of the token estimate.
type CountTokensResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// AsGenerateContentResponse converts a reconstructed Response to its wire
// form, attributing the candidate content to the model role.
func (r *Response) AsGenerateContentResponse(model, finishReason string) *GenerateContentResponse {
	out := &GenerateContentResponse{
		Candidates: []Candidate{
			{
				Content: Content{
					Parts: r.Parts,
					Role:  RoleModel,
				},
				FinishReason: finishReason,
			},
		},
		ModelVersion: model,
	}

	if r.Usage != nil {
		out.UsageMetadata = &UsageMetadata{
			PromptTokenCount:     r.Usage.PromptTokens,
			CandidatesTokenCount: r.Usage.CompletionTokens,
			TotalTokenCount:      r.Usage.TotalTokens,
		}
	}

	return out
}
