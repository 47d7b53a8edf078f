package translate

import "testing"

func finishReasonPtr(s string) *string { return &s }

func TestStreamTranslatorTextDelta(t *testing.T) {
	tr := NewStreamTranslator("claude-3")

	events, err := tr.Feed(OpenAIStreamChunk{
		Model:   "claude-3",
		Choices: []OpenAIStreamChoice{{Delta: OpenAIStreamDelta{Content: "hello"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []string{"message_start", "content_block_start", "content_block_delta"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
}

func TestStreamTranslatorToolCallSequencing(t *testing.T) {
	tr := NewStreamTranslator("claude-3")

	_, err := tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta: OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{
			Index:    0,
			ID:       "call_1",
			Type:     "function",
			Function: &OpenAIToolCallFnDelta{Name: "read_file"},
		}}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta: OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{
			Index:    0,
			Function: &OpenAIToolCallFnDelta{Arguments: `{"file`},
		}}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Type != "content_block_delta" {
		t.Fatalf("expected one content_block_delta event, got %+v", events)
	}
	if events[0].Data["delta"].(map[string]interface{})["partial_json"] != `{"file` {
		t.Fatalf("expected raw partial_json fragment preserved, got %+v", events[0].Data)
	}

	events, err = tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta:        OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{Index: 0, Function: &OpenAIToolCallFnDelta{Arguments: `_path":"/tmp/a"}`}}}},
		FinishReason: finishReasonPtr("tool_calls"),
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one more content_block_delta, got %+v", events)
	}

	final := tr.Finalize()
	var types []string
	for _, e := range final {
		types = append(types, e.Type)
	}
	want := []string{"content_block_stop", "message_delta", "message_stop"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for _, e := range final {
		if e.Type == "message_delta" {
			delta := e.Data["delta"].(map[string]interface{})
			if delta["stop_reason"] != "tool_use" {
				t.Fatalf("expected stop_reason tool_use, got %v", delta["stop_reason"])
			}
		}
	}
}

func TestStreamTranslatorDedupesRepeatedToolStart(t *testing.T) {
	tr := NewStreamTranslator("claude-3")
	_, _ = tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta: OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{Index: 0, ID: "call_1", Function: &OpenAIToolCallFnDelta{Name: "x"}}}},
	}})
	events, err := tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta: OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{Index: 0, ID: "call_1", Function: &OpenAIToolCallFnDelta{Name: "x"}}}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range events {
		if e.Type == "content_block_start" {
			t.Fatalf("expected repeated tool start to be coalesced, got a second content_block_start")
		}
	}
}

// TestStreamTranslatorSynthesizesEmptyArgumentsForStartEndOnlyToolCall pins
// spec §4.8's rule for providers that send only a tool call's start and end
// with no `arguments` deltas at all: closing that block must synthesize a
// `{}` input_json_delta so downstream clients still see at least one delta.
func TestStreamTranslatorSynthesizesEmptyArgumentsForStartEndOnlyToolCall(t *testing.T) {
	tr := NewStreamTranslator("claude-3")

	_, err := tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta: OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{
			Index:    0,
			ID:       "call_1",
			Function: &OpenAIToolCallFnDelta{Name: "list_files"},
		}}},
		FinishReason: finishReasonPtr("tool_calls"),
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := tr.Finalize()
	var types []string
	for _, e := range final {
		types = append(types, e.Type)
	}
	want := []string{"content_block_delta", "content_block_stop", "message_delta", "message_stop"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
	delta := final[0].Data["delta"].(map[string]interface{})
	if delta["type"] != "input_json_delta" || delta["partial_json"] != "{}" {
		t.Fatalf("expected synthetic input_json_delta carrying {}, got %+v", delta)
	}
}

func TestStreamTranslatorClosesTextBeforeOpeningTool(t *testing.T) {
	tr := NewStreamTranslator("claude-3")
	_, _ = tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{Delta: OpenAIStreamDelta{Content: "thinking..."}}}})

	events, err := tr.Feed(OpenAIStreamChunk{Choices: []OpenAIStreamChoice{{
		Delta: OpenAIStreamDelta{ToolCalls: []OpenAIToolCallDelta{{Index: 0, ID: "call_1", Function: &OpenAIToolCallFnDelta{Name: "x"}}}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events[0].Type != "content_block_stop" {
		t.Fatalf("expected text block to close before tool block opens, got %+v", events)
	}
}
