package translate

import (
	"encoding/json"
	"testing"
)

func TestToOpenAIRequestConcatenatesSystemBlocks(t *testing.T) {
	req := &AnthropicRequest{
		Model:     "claude-3",
		System:    json.RawMessage(`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`),
		Messages:  []AnthropicMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}},
		MaxTokens: 100,
	}

	out, blocks, err := ToOpenAIRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 || blocks[0] != "a" || blocks[1] != "b" {
		t.Fatalf("expected system blocks [a b], got %v", blocks)
	}
	if out.Messages[0].Role != "system" || out.Messages[0].Content != "a\n\nb" {
		t.Fatalf("expected joined system message, got %+v", out.Messages[0])
	}
	if out.Messages[1].Role != "user" || out.Messages[1].Content != "hi" {
		t.Fatalf("expected user message passthrough, got %+v", out.Messages[1])
	}
}

func TestToOpenAIRequestToolUseBecomesToolCalls(t *testing.T) {
	content := json.RawMessage(`[{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"NYC"}}]`)
	req := &AnthropicRequest{
		Model:    "claude-3",
		Messages: []AnthropicMessage{{Role: "assistant", Content: content}},
	}

	out, _, err := ToOpenAIRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out.Messages))
	}
	calls := out.Messages[0].ToolCalls
	if len(calls) != 1 || calls[0].ID != "toolu_1" || calls[0].Function.Name != "get_weather" {
		t.Fatalf("expected one tool_call with preserved id/name, got %+v", calls)
	}
}

func TestToOpenAIRequestToolResultBecomesToolMessage(t *testing.T) {
	content := json.RawMessage(`[{"type":"tool_result","tool_use_id":"toolu_1","content":"72F"}]`)
	req := &AnthropicRequest{
		Model:    "claude-3",
		Messages: []AnthropicMessage{{Role: "user", Content: content}},
	}

	out, _, err := ToOpenAIRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Messages) != 1 || out.Messages[0].Role != "tool" || out.Messages[0].ToolCallID != "toolu_1" {
		t.Fatalf("expected a role:tool message referencing toolu_1, got %+v", out.Messages)
	}
	if out.Messages[0].Content != "72F" {
		t.Fatalf("expected tool result text '72F', got %q", out.Messages[0].Content)
	}
}

func TestRewriteSchemaInjectsAdditionalPropertiesFalse(t *testing.T) {
	raw := json.RawMessage(`{"type":"object","properties":{"a":{"type":"string"}}}`)
	out := RewriteSchema(raw)

	var tree map[string]interface{}
	if err := json.Unmarshal(out, &tree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ap, ok := tree["additionalProperties"].(bool); !ok || ap != false {
		t.Fatalf("expected additionalProperties:false to be injected, got %v", tree["additionalProperties"])
	}
}

func TestRewriteSchemaCollapsesOneOf(t *testing.T) {
	raw := json.RawMessage(`{"oneOf":[{"type":"string"},{"type":"number"}]}`)
	out := RewriteSchema(raw)

	var tree map[string]interface{}
	if err := json.Unmarshal(out, &tree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree["type"] != "string" {
		t.Fatalf("expected oneOf collapsed to first branch, got %v", tree)
	}
	if _, ok := tree["oneOf"]; ok {
		t.Fatalf("expected oneOf to be removed after collapse")
	}
}

func TestRewriteSchemaCollapsesTypeArrayDroppingNull(t *testing.T) {
	raw := json.RawMessage(`{"type":["null","string"]}`)
	out := RewriteSchema(raw)

	var tree map[string]interface{}
	if err := json.Unmarshal(out, &tree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree["type"] != "string" {
		t.Fatalf("expected null dropped from type array, got %v", tree["type"])
	}
}

func TestRewriteSchemaRemovesURIFormat(t *testing.T) {
	raw := json.RawMessage(`{"type":"string","format":"uri"}`)
	out := RewriteSchema(raw)

	var tree map[string]interface{}
	if err := json.Unmarshal(out, &tree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree["format"]; ok {
		t.Fatalf("expected format:uri to be removed")
	}
}
