package translate

import "testing"

func TestToAnthropicResponseMapsStopReason(t *testing.T) {
	resp := &OpenAIResponse{
		Choices: []OpenAIChoice{{
			Message:      OpenAIMessage{Content: "hello"},
			FinishReason: "stop",
		}},
	}
	out := ToAnthropicResponse(resp, "claude-3")
	if out.StopReason != "end_turn" {
		t.Fatalf("expected end_turn, got %s", out.StopReason)
	}
	if len(out.Content) != 1 || out.Content[0].Type != "text" || out.Content[0].Text != "hello" {
		t.Fatalf("expected single text block, got %+v", out.Content)
	}
}

func TestToAnthropicResponseBuildsToolUseBlock(t *testing.T) {
	resp := &OpenAIResponse{
		Choices: []OpenAIChoice{{
			Message: OpenAIMessage{
				ToolCalls: []OpenAIToolCall{{
					ID:       "call_1",
					Function: OpenAIToolCallBody{Name: "get_weather", Arguments: `{"city":"NYC"}`},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
	out := ToAnthropicResponse(resp, "claude-3")
	if out.StopReason != "tool_use" {
		t.Fatalf("expected tool_use, got %s", out.StopReason)
	}
	if len(out.Content) != 1 || out.Content[0].Type != "tool_use" || out.Content[0].ID != "call_1" {
		t.Fatalf("expected preserved tool_use id, got %+v", out.Content)
	}
	if string(out.Content[0].Input) != `{"city":"NYC"}` {
		t.Fatalf("expected arguments preserved as JSON, got %s", out.Content[0].Input)
	}
}

func TestToAnthropicResponseMalformedArgumentsFallBackToText(t *testing.T) {
	resp := &OpenAIResponse{
		Choices: []OpenAIChoice{{
			Message: OpenAIMessage{
				ToolCalls: []OpenAIToolCall{{
					ID:       "call_1",
					Function: OpenAIToolCallBody{Name: "get_weather", Arguments: `{not json`},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
	out := ToAnthropicResponse(resp, "claude-3")
	if len(out.Content) != 1 || out.Content[0].Type != "text" {
		t.Fatalf("expected malformed arguments to degrade to a text block, got %+v", out.Content)
	}
}

func TestMapStopReasonDefaultsToEndTurn(t *testing.T) {
	if mapStopReason("something_unknown") != "end_turn" {
		t.Fatalf("expected unknown finish reason to default to end_turn")
	}
}
