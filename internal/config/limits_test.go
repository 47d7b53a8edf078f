package config

import "testing"

func TestContextWindowForPrefersReportedFields(t *testing.T) {
	got := ContextWindowFor("gpt-4", ModelDiscovery{ContextLength: 50_000, MaxContextLength: 10})
	if got != 50_000 {
		t.Fatalf("expected reported context_length to win, got %d", got)
	}
}

func TestContextWindowForFallsBackThroughReportedFieldsInOrder(t *testing.T) {
	got := ContextWindowFor("gpt-4", ModelDiscovery{LoadedContextLength: 20_000, MaxContextLength: 10})
	if got != 20_000 {
		t.Fatalf("expected loaded_context_length to win over max_context_length, got %d", got)
	}
}

func TestContextWindowForFallsBackToStaticTable(t *testing.T) {
	if got := ContextWindowFor("claude-3-haiku", ModelDiscovery{}); got != 200_000 {
		t.Fatalf("expected claude default window 200000, got %d", got)
	}
	if got := ContextWindowFor("totally-unknown-model", ModelDiscovery{}); got != fallbackContextWindow {
		t.Fatalf("expected fallback window for unknown model, got %d", got)
	}
}
