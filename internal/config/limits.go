package config

import "strings"

// ModelDiscovery is the subset of a node's /v1/models entry relevant to
// context-window tiering (spec §6: optional context_length/
// loaded_context_length/max_context_length fields, read in that priority
// order).
type ModelDiscovery struct {
	ContextLength       int
	LoadedContextLength int
	MaxContextLength    int
}

// defaultContextWindows is the teacher's GetModelLimits table
// (internal/config/limits.go) generalized from input/output token caps to a
// single effective context window used when a node doesn't report one
// itself.
var defaultContextWindows = []struct {
	prefix string
	window int
}{
	{"deepseek", 64_000},
	{"claude", 200_000},
	{"gpt", 128_000},
	{"gemini", 1_000_000},
}

const fallbackContextWindow = 32_000

// ContextWindowFor returns the effective context window for model, used by
// the gateway's /v1/models listing (spec §6). A node's self-reported discovery fields take priority
// over the static table, in ContextLength, LoadedContextLength,
// MaxContextLength order.
func ContextWindowFor(model string, reported ModelDiscovery) int {
	switch {
	case reported.ContextLength > 0:
		return reported.ContextLength
	case reported.LoadedContextLength > 0:
		return reported.LoadedContextLength
	case reported.MaxContextLength > 0:
		return reported.MaxContextLength
	}

	lower := strings.ToLower(model)
	for _, entry := range defaultContextWindows {
		if strings.Contains(lower, entry.prefix) {
			return entry.window
		}
	}
	return fallbackContextWindow
}
