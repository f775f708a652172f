package upstream

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var request ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "gpt-4o", request.Model)
		assert.False(t, request.Stream)

		json.NewEncoder(w).Encode(ChatCompletion{
			ID: "cmpl-1",
			Choices: []Choice{
				{Message: &ChatMessage{Role: "assistant", Content: "hello"}, FinishReason: "stop"},
			},
			Usage: &Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)

	completion, err := client.CreateChatCompletion(context.Background(), &ChatRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	require.Len(t, completion.Choices, 1)
	assert.Equal(t, "hello", completion.Choices[0].Message.Content)
	assert.Equal(t, 6, completion.Usage.TotalTokens)
}

func TestClient_CreateChatCompletion_Gzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		json.NewEncoder(gz).Encode(ChatCompletion{
			Choices: []Choice{{Message: &ChatMessage{Content: "compressed"}}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)

	completion, err := client.CreateChatCompletion(context.Background(), &ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Len(t, completion.Choices, 1)
	assert.Equal(t, "compressed", completion.Choices[0].Message.Content)
}

func TestClient_CreateChatCompletion_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)

	_, err := client.CreateChatCompletion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "rate limited", statusErr.Message)
}

func TestClient_StreamChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var request ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.True(t, request.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(": keep-alive\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"hel"}}]}` + "\n\n"))
		w.Write([]byte("garbage line\n"))
		w.Write([]byte(`data: not-json` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"lo"}},{"delta":{"content":"x"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"finish_reason":"stop"}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)

	events, err := client.StreamChatCompletion(context.Background(), &ChatRequest{Model: "m"})
	require.NoError(t, err)

	var chunks []*ChatCompletionChunk
	for event := range events {
		require.NoError(t, event.Err)
		chunks = append(chunks, event.Chunk)
	}

	// Keep-alives, garbage and undecodable lines are skipped; [DONE] ends
	// the stream.
	require.Len(t, chunks, 3)
	assert.Equal(t, "hel", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "lo", chunks[1].Choices[0].Delta.Content)
	assert.Equal(t, "stop", chunks[2].Choices[0].FinishReason)
}

func TestClient_StreamChatCompletion_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong", nil)

	_, err := client.StreamChatCompletion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestClient_StreamChatCompletion_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"a"}}]}` + "\n\n"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())

	client := NewClient(server.URL, "", nil)

	events, err := client.StreamChatCompletion(ctx, &ChatRequest{Model: "m"})
	require.NoError(t, err)

	event := <-events
	require.NoError(t, event.Err)
	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate after cancel")
	}
}

func TestStatusError_PlainBody(t *testing.T) {
	err := newStatusError(http.StatusBadGateway, []byte("upstream exploded"))
	assert.Equal(t, "upstream exploded", err.Message)
	assert.Contains(t, err.Error(), "502")
}
