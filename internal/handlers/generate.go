package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Davincible/gemini-code-open/internal/adapter"
	"github.com/Davincible/gemini-code-open/internal/config"
	"github.com/Davincible/gemini-code-open/internal/upstream"
)

const (
	opGenerateContent       = "generateContent"
	opStreamGenerateContent = "streamGenerateContent"
	opCountTokens           = "countTokens"
	opEmbedContent          = "embedContent"
	opBatchEmbedContents    = "batchEmbedContents"
)

// GenerateHandler serves the content-generator REST surface and fulfils it
// against the configured chat-completions backend.
type GenerateHandler struct {
	config *config.Manager
	logger *slog.Logger
}

func NewGenerateHandler(config *config.Manager, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		config: config,
		logger: logger,
	}
}

func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	pathModel, op, ok := parseModelPath(r.URL.Path)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown path: %s", r.URL.Path)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	switch op {
	case opEmbedContent, opBatchEmbedContents:
		// Fail immediately, never contact the backend.
		h.logger.Warn("Rejecting embedding request", "path", r.URL.Path)
		h.writeError(w, http.StatusNotImplemented, "%v", adapter.ErrEmbeddingNotSupported)

		return
	}

	var request adapter.GenerateRequest
	if err := json.Unmarshal(body, &request); err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to decode request body: %v", err)
		return
	}

	turns, err := adapter.NormalizeContents(request.Contents)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid contents: %v", err)
		return
	}

	if op == opCountTokens {
		h.writeJSON(w, http.StatusOK, &adapter.CountTokensResponse{
			TotalTokens: adapter.CountTokens(turns),
		})

		return
	}

	cfg := h.config.Get()

	model := resolveModel(pathModel, request.Model, cfg)
	if model == "" {
		h.writeError(w, http.StatusBadRequest, "%v", adapter.ErrMissingModel)
		return
	}

	systemInstruction, err := adapter.NormalizeSystemInstruction(request.SystemInstruction)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid system instruction: %v", err)
		return
	}

	chatRequest := buildChatRequest(model, turns, systemInstruction, &request, cfg)

	h.logger.Info("Adapting request",
		"model", model,
		"op", op,
		"messages", len(chatRequest.Messages),
		"tools", len(chatRequest.Tools),
		"input_tokens_estimate", h.estimateRequestTokens(string(body)),
	)

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, h.logger)

	switch op {
	case opGenerateContent:
		h.handleGenerate(w, r, client, chatRequest, model)
	case opStreamGenerateContent:
		h.handleStreamGenerate(w, r, client, chatRequest, model)
	default:
		h.writeError(w, http.StatusNotFound, "unknown operation: %s", op)
	}
}

func (h *GenerateHandler) handleGenerate(w http.ResponseWriter, r *http.Request, client *upstream.Client, chatRequest *upstream.ChatRequest, model string) {
	completion, err := client.CreateChatCompletion(r.Context(), chatRequest)
	if err != nil {
		h.relayUpstreamError(w, err)
		return
	}

	finishReason := ""
	if len(completion.Choices) > 0 {
		finishReason = geminiFinishReason(completion.Choices[0].FinishReason)
	}

	response := adapter.FromCompletion(completion)

	h.writeJSON(w, http.StatusOK, response.AsGenerateContentResponse(model, finishReason))
}

func (h *GenerateHandler) handleStreamGenerate(w http.ResponseWriter, r *http.Request, client *upstream.Client, chatRequest *upstream.ChatRequest, model string) {
	events, err := client.StreamChatCompletion(r.Context(), chatRequest)
	if err != nil {
		h.relayUpstreamError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	session := adapter.NewStreamSession(h.logger)

	for event := range events {
		if event.Err != nil {
			h.logger.Error("Upstream stream failed", "error", event.Err)
			return
		}

		response := session.Step(event.Chunk)
		if response == nil {
			continue
		}

		finishReason := ""
		if len(event.Chunk.Choices) > 0 {
			finishReason = geminiFinishReason(event.Chunk.Choices[0].FinishReason)
		}

		data, err := json.Marshal(response.AsGenerateContentResponse(model, finishReason))
		if err != nil {
			h.logger.Error("Failed to marshal stream response", "error", err)
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)

		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

func (h *GenerateHandler) relayUpstreamError(w http.ResponseWriter, err error) {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		h.writeError(w, statusErr.StatusCode, "%s", statusErr.Message)
		return
	}

	h.writeError(w, http.StatusBadGateway, "upstream request failed: %v", err)
}

func (h *GenerateHandler) estimateRequestTokens(text string) int {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		h.logger.Debug("Failed to load tiktoken encoding", "error", err)
		return 0
	}

	return len(encoding.Encode(text, nil, nil))
}

// errorStatus is the RPC status name carried in error payloads.
func errorStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusNotImplemented:
		return "UNIMPLEMENTED"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

func (h *GenerateHandler) writeError(w http.ResponseWriter, code int, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	h.logger.Error("Request failed", "code", code, "message", message)

	h.writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  errorStatus(code),
		},
	})
}

func (h *GenerateHandler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// parseModelPath splits ".../models/{model}:{operation}" into its parts.
func parseModelPath(path string) (model, op string, ok bool) {
	idx := strings.Index(path, "/models/")
	if idx < 0 {
		return "", "", false
	}

	rest := path[idx+len("/models/"):]

	model, op, found := strings.Cut(rest, ":")
	if !found || op == "" {
		return "", "", false
	}

	return model, op, true
}

func resolveModel(pathModel, requestModel string, cfg *config.Config) string {
	if pathModel != "" {
		return pathModel
	}

	if requestModel != "" {
		return strings.TrimPrefix(requestModel, "models/")
	}

	return cfg.Upstream.Model
}

func buildChatRequest(model string, turns []adapter.Turn, systemInstruction string, request *adapter.GenerateRequest, cfg *config.Config) *upstream.ChatRequest {
	chatRequest := &upstream.ChatRequest{
		Model:       model,
		Messages:    adapter.ToChatMessages(turns, systemInstruction),
		Tools:       adapter.ExtractTools(request.Tools),
		Temperature: cfg.Upstream.Temperature,
		TopP:        cfg.Upstream.TopP,
		MaxTokens:   cfg.Upstream.MaxTokens,
	}

	// Per-request sampling parameters override configured defaults.
	if generation := request.GenerationConfig; generation != nil {
		if generation.Temperature != nil {
			chatRequest.Temperature = generation.Temperature
		}

		if generation.TopP != nil {
			chatRequest.TopP = generation.TopP
		}

		if generation.MaxOutputTokens > 0 {
			chatRequest.MaxTokens = generation.MaxOutputTokens
		}
	}

	return chatRequest
}

// geminiFinishReason maps the flat protocol's finish reasons onto the
// structured protocol's vocabulary.
func geminiFinishReason(reason string) string {
	switch reason {
	case "":
		return ""
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	default:
		// stop, tool_calls and anything unrecognized all end the turn
		// normally on the structured side.
		return "STOP"
	}
}
