package intent

import (
	"context"
	"encoding/json"
	"strings"
)

// Caller sends a single-turn prompt to a model and returns its text reply.
// The intent package depends only on this interface so it can be exercised
// with a node's chat-completions client without an import cycle; satisfied
// by internal/upstream/openaicompat.BoundCaller.
type Caller interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const llmPrompt = `Does answering the following user message require searching the web for current or external information the assistant could not already know? Respond with ONLY the word YES or NO.

User message:
"""
%s
"""`

func buildLLMPrompt(query string) string {
	return strings.Replace(llmPrompt, "%s", query, 1)
}

// jsonVerdict covers the two JSON shapes an LLM fallback might return when it
// ignores the "respond with ONLY YES or NO" instruction.
type jsonVerdict struct {
	IsSearch *bool  `json:"is_search"`
	Answer   string `json:"answer"`
}

// parseLLMVerdict accepts a bare YES/NO, a YES/NO as the leading word of a
// longer sentence, or one of the JSON shapes above. Mirrors the teacher's
// tryExtractJSON/stripCodeFences leniency (internal/orchestrator/orchestrator.go)
// generalized to a boolean instead of a struct.
func parseLLMVerdict(reply string) (bool, bool) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return false, false
	}

	if trimmed[0] == '{' {
		var v jsonVerdict
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			if v.IsSearch != nil {
				return *v.IsSearch, true
			}
			if v.Answer != "" {
				return parseYesNo(v.Answer)
			}
		}
	}

	leading := firstWord(trimmed)
	return parseYesNo(leading)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!?\"'")
}

func parseYesNo(word string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(word)) {
	case "YES":
		return true, true
	case "NO":
		return false, true
	default:
		return false, false
	}
}
