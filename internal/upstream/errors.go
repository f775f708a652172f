package upstream

import (
	"encoding/json"
	"fmt"
)

// StatusError is a non-200 backend reply. The raw body is preserved so the
// caller can relay the backend's own error message.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

func newStatusError(statusCode int, body []byte) *StatusError {
	message := string(body)

	// Prefer the structured error message when the body is the standard
	// {"error": {"message": ...}} envelope.
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	return &StatusError{StatusCode: statusCode, Message: message}
}
