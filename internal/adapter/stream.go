package adapter

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Davincible/gemini-code-open/internal/upstream"
)

// pendingToolCall is one in-progress tool call being reassembled from
// streaming fragments. The argument buffer is append-only until flush; id
// and name fill in monotonically and are never overwritten with empty text.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// StreamSession reconstructs structured responses from a single stream of
// partial chunks. Each session owns its accumulator exclusively: allocate
// one per stream and never share it across streams. Abandoning a session
// mid-stream simply discards any partially accumulated calls.
type StreamSession struct {
	pending map[int]*pendingToolCall
	logger  *slog.Logger
}

// NewStreamSession creates a session with an empty accumulator.
func NewStreamSession(logger *slog.Logger) *StreamSession {
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamSession{
		pending: make(map[int]*pendingToolCall),
		logger:  logger,
	}
}

// Step advances the session with one chunk and returns at most one response.
//
// A text delta is emitted immediately as a standalone text response. Tool-call
// fragments are accumulated silently by call index. When the chunk signals
// tool-call completion and calls are pending, the accumulated calls are
// flushed in ascending index order and the accumulator is cleared. Chunks that
// trigger none of these produce nothing.
func (s *StreamSession) Step(chunk *upstream.ChatCompletionChunk) *Response {
	if chunk == nil || len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]

	if choice.Delta != nil {
		s.accumulate(choice.Delta.ToolCalls)

		if text := contentText(choice.Delta.Content); text != "" {
			return &Response{
				Parts: []Part{{Text: text}},
				Usage: usageFromChunk(chunk),
			}
		}
	}

	if choice.FinishReason == FinishReasonToolCalls && len(s.pending) > 0 {
		return s.flush(chunk)
	}

	return nil
}

// accumulate folds tool-call fragments into the pending map. Fragments whose
// declared type is not "function" are ignored; everything else is keyed by
// call index, created on first sight and extended afterwards.
func (s *StreamSession) accumulate(fragments []upstream.ToolCallDelta) {
	for _, fragment := range fragments {
		if fragment.Type != "" && fragment.Type != upstream.ToolCallTypeFunction {
			continue
		}

		call, ok := s.pending[fragment.Index]
		if !ok {
			call = &pendingToolCall{}
			s.pending[fragment.Index] = call
		}

		if fragment.ID != "" {
			call.id = fragment.ID
		}

		if fragment.Function != nil {
			if fragment.Function.Name != "" {
				call.name = fragment.Function.Name
			}

			call.args.WriteString(fragment.Function.Arguments)
		}
	}
}

// flush finalizes every pending call in ascending index order and resets the
// accumulator. Calls that never received a name are incomplete and dropped
// rather than emitted malformed; the accumulator is cleared even when that
// leaves the response empty.
func (s *StreamSession) flush(chunk *upstream.ChatCompletionChunk) *Response {
	indices := make([]int, 0, len(s.pending))
	for index := range s.pending {
		indices = append(indices, index)
	}

	sort.Ints(indices)

	response := &Response{Usage: usageFromChunk(chunk)}

	for _, index := range indices {
		pending := s.pending[index]

		if pending.name == "" {
			s.logger.Debug("Dropping unnamed tool call at flush", "index", index, "id", pending.id)
			continue
		}

		call := &FunctionCall{
			ID:   pending.id,
			Name: pending.name,
			Args: parseArgs(pending.args.String()),
		}

		response.Parts = append(response.Parts, Part{FunctionCall: call})
		response.FunctionCalls = append(response.FunctionCalls, call)
	}

	s.pending = make(map[int]*pendingToolCall)

	return response
}

func usageFromChunk(chunk *upstream.ChatCompletionChunk) *Usage {
	if chunk == nil || chunk.Usage == nil {
		return nil
	}

	return &Usage{
		PromptTokens:     chunk.Usage.PromptTokens,
		CompletionTokens: chunk.Usage.CompletionTokens,
		TotalTokens:      chunk.Usage.TotalTokens,
	}
}
