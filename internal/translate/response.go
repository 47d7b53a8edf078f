package translate

import (
	"encoding/json"

	"github.com/google/uuid"
)

// stopReasonTable is the fixed mapping from spec §4.8 "OpenAI -> Anthropic
// response".
var stopReasonTable = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"content_filter": "refusal",
}

func mapStopReason(openAIReason string) string {
	if r, ok := stopReasonTable[openAIReason]; ok {
		return r
	}
	return "end_turn"
}

// ToAnthropicResponse converts a non-streaming OpenAI chat completion
// response into an Anthropic Message (spec §4.8).
func ToAnthropicResponse(resp *OpenAIResponse, model string) *AnthropicResponseMessage {
	out := &AnthropicResponseMessage{
		ID:    "msg_" + uuid.NewString(),
		Type:  "message",
		Role:  "assistant",
		Model: model,
	}

	if len(resp.Choices) == 0 {
		out.StopReason = "end_turn"
		return out
	}

	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		out.Content = append(out.Content, AnthropicContentBlock{Type: "text", Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		block := AnthropicContentBlock{
			Type: "tool_use",
			ID:   tc.ID,
			Name: tc.Function.Name,
		}
		if block.ID == "" {
			block.ID = "toolu_" + uuid.NewString()
		}
		input, err := parseToolArguments(tc.Function.Arguments)
		if err != nil {
			// Malformed upstream arguments: surface as a text block rather
			// than failing the whole response (spec §4.8 "guard against
			// malformed content").
			out.Content = append(out.Content, AnthropicContentBlock{
				Type: "text",
				Text: tc.Function.Arguments,
			})
			continue
		}
		block.Input = input
		out.Content = append(out.Content, block)
	}

	out.StopReason = mapStopReason(choice.FinishReason)
	if resp.Usage != nil {
		out.Usage = AnthropicUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out
}

func parseToolArguments(raw string) (json.RawMessage, error) {
	if raw == "" {
		return json.RawMessage("{}"), nil
	}
	var tree interface{}
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
