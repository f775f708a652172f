package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func textTurns(text string) []Turn {
	return []Turn{{Role: RoleUser, Parts: []Part{{Text: text}}}}
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(nil))
	assert.Equal(t, 0, CountTokens(textTurns("")))

	// Short word: one run, one token.
	assert.Equal(t, 1, CountTokens(textTurns("hi")))

	// Each symbol counts on its own.
	assert.Equal(t, 3, CountTokens(textTurns("a+b")))
}

func TestCountTokens_Monotonic(t *testing.T) {
	short := CountTokens(textTurns("list the files"))
	longer := CountTokens(textTurns("list the files in the current working directory recursively"))

	assert.Greater(t, short, 0)
	assert.Greater(t, longer, short)
}

func TestCountTokens_LongRunsWeighHeavier(t *testing.T) {
	assert.Greater(t,
		CountTokens(textTurns("internationalization")),
		CountTokens(textTurns("intl")))
}

func TestCountTokens_FunctionParts(t *testing.T) {
	turns := []Turn{
		{Role: RoleModel, Parts: []Part{
			{FunctionCall: &FunctionCall{Name: "list_directory", Args: map[string]any{"dir_path": "/tmp"}}},
		}},
		{Role: RoleUser, Parts: []Part{
			{FunctionResponse: &FunctionResponse{
				Name:     "list_directory",
				Response: FunctionResponsePayload{Output: "file_a file_b"},
			}},
		}},
	}

	assert.Greater(t, CountTokens(turns), 0)
}
