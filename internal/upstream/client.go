package upstream

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

const defaultTimeout = 5 * time.Minute

// Client talks to one OpenAI-compatible chat-completions backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// StreamEvent is one element of a streamed response: either a decoded chunk
// or a terminal error. The event channel closes when the upstream stream
// ends.
type StreamEvent struct {
	Chunk *ChatCompletionChunk
	Err   error
}

// NewClient creates a client for the given endpoint. baseURL is the full
// chat-completions URL, e.g. "https://api.openai.com/v1/chat/completions".
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// CreateChatCompletion sends a non-streamed request and returns the single
// completion object.
func (c *Client) CreateChatCompletion(ctx context.Context, request *ChatRequest) (*ChatCompletion, error) {
	request.Stream = false

	resp, err := c.post(ctx, request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyReader, err := decompressReader(resp)
	if err != nil {
		return nil, fmt.Errorf("decompress response: %w", err)
	}
	if closer, ok := bodyReader.(io.Closer); ok {
		defer closer.Close()
	}

	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, body)
	}

	var completion ChatCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	return &completion, nil
}

// StreamChatCompletion sends a streamed request and returns a channel of
// chunk events. The channel closes when the upstream stream ends, the
// terminal [DONE] marker arrives, or the context is cancelled; a transport
// or scan failure is delivered as the final event.
func (c *Client) StreamChatCompletion(ctx context.Context, request *ChatRequest) (<-chan StreamEvent, error) {
	request.Stream = true

	resp, err := c.post(ctx, request)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		return nil, newStatusError(resp.StatusCode, body)
	}

	bodyReader, err := decompressReader(resp)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decompress response: %w", err)
	}

	events := make(chan StreamEvent)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(bodyReader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			// Skip blank keep-alives and SSE comments.
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}

			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var chunk ChatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Warn("Skipping undecodable stream chunk", "error", err)
				continue
			}

			select {
			case events <- StreamEvent{Chunk: &chunk}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case events <- StreamEvent{Err: fmt.Errorf("scan upstream stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return events, nil
}

func (c *Client) post(ctx context.Context, request *ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if request.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	return resp, nil
}

func decompressReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
