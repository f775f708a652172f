package adapter

import "errors"

var (
	// ErrMissingModel is returned when no target model is configured for a
	// request and none is named in the request itself. Fatal: nothing is
	// sent upstream.
	ErrMissingModel = errors.New("no model specified and no default model configured")

	// ErrEmbeddingNotSupported is returned for any embedding request. The
	// adapter never attempts a backend call for embeddings.
	ErrEmbeddingNotSupported = errors.New("embedContent is not supported by the chat-completions backend")
)
