package translate

import (
	"encoding/json"
	"fmt"
)

// ToOpenAIRequest converts an Anthropic Messages request into an OpenAI
// chat completion request (spec §4.8 "Anthropic -> OpenAI request").
func ToOpenAIRequest(req *AnthropicRequest) (*OpenAIRequest, []string, error) {
	systemBlocks, err := extractSystemBlocks(req.System)
	if err != nil {
		return nil, nil, fmt.Errorf("translate: extract system blocks: %w", err)
	}

	var messages []OpenAIMessage
	if len(systemBlocks) > 0 {
		messages = append(messages, OpenAIMessage{Role: "system", Content: joinSystemBlocks(systemBlocks)})
	}

	for _, m := range req.Messages {
		blocks, err := decodeBlocks(m.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("translate: decode message content: %w", err)
		}
		converted, err := convertMessage(m.Role, blocks)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, converted...)
	}

	out := &OpenAIRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Stop:        req.StopSequences,
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, OpenAITool{
			Type: "function",
			Function: OpenAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  RewriteSchema(t.InputSchema),
			},
		})
	}

	return out, systemBlocks, nil
}

func extractSystemBlocks(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []string{asString}, nil
	}

	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			out = append(out, b.Text)
		}
	}
	return out, nil
}

func joinSystemBlocks(blocks []string) string {
	out := ""
	for i, b := range blocks {
		if i > 0 {
			out += "\n\n"
		}
		out += b
	}
	return out
}

func decodeBlocks(raw json.RawMessage) ([]AnthropicContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []AnthropicContentBlock{{Type: "text", Text: asString}}, nil
	}

	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// convertMessage turns one Anthropic message into zero or more OpenAI
// messages: a single user/assistant message's text and tool_use blocks
// collapse into one OpenAI message (text + tool_calls), but each
// tool_result block becomes its own role:"tool" message (spec §4.8).
func convertMessage(role string, blocks []AnthropicContentBlock) ([]OpenAIMessage, error) {
	var text string
	var toolCalls []OpenAIToolCall
	var toolResults []OpenAIMessage

	for _, b := range blocks {
		switch b.Type {
		case "text":
			if text != "" {
				text += "\n"
			}
			text += b.Text
		case "tool_use":
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			toolCalls = append(toolCalls, OpenAIToolCall{
				ID:   b.ID,
				Type: "function",
				Function: OpenAIToolCallBody{
					Name:      b.Name,
					Arguments: args,
				},
			})
		case "tool_result":
			toolResults = append(toolResults, OpenAIMessage{
				Role:       "tool",
				Content:    toolResultText(b.Content),
				ToolCallID: b.ToolUseID,
			})
		}
	}

	var out []OpenAIMessage
	if text != "" || len(toolCalls) > 0 {
		out = append(out, OpenAIMessage{Role: role, Content: text, ToolCalls: toolCalls})
	}
	out = append(out, toolResults...)
	return out, nil
}

func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		out := ""
		for i, b := range blocks {
			if i > 0 {
				out += "\n"
			}
			out += b.Text
		}
		return out
	}
	return string(raw)
}
