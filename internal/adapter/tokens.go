package adapter

import (
	"encoding/json"
	"regexp"
)

// tokenPattern splits text into alphanumeric runs and individual symbol
// characters, approximating how subword tokenizers segment input.
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+|[^\sA-Za-z0-9_]`)

// CountTokens estimates the token count of the given turns. This is a rough
// regex-based heuristic, not a real tokenizer: the result is non-negative and
// grows monotonically with input length, nothing more. The per-run length
// divisor is a tuning constant.
func CountTokens(turns []Turn) int {
	total := 0

	for _, turn := range turns {
		for _, part := range turn.Parts {
			switch {
			case part.FunctionCall != nil:
				total += countText(part.FunctionCall.Name)
				if data, err := json.Marshal(part.FunctionCall.Args); err == nil {
					total += countText(string(data))
				}
			case part.FunctionResponse != nil:
				total += countText(part.FunctionResponse.Name)
				total += countText(part.FunctionResponse.Response.Output)
				total += countText(part.FunctionResponse.Response.Error)
			default:
				total += countText(part.Text)
			}
		}
	}

	return total
}

func countText(text string) int {
	if text == "" {
		return 0
	}

	count := 0

	for _, run := range tokenPattern.FindAllString(text, -1) {
		// One token per run plus one for every six further characters, so
		// long identifiers and words count heavier than short ones.
		count += 1 + len(run)/6
	}

	return count
}
