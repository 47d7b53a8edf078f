// Package translate implements the bidirectional Anthropic Messages ↔
// OpenAI Chat Completions protocol conversion (spec §4.8), including the
// non-streaming response mapping, the streaming event sequencer, and the
// JSON Schema dialect rewriter (§4.8.1). Grounded on the teacher's
// internal/upstream/anthropiccompat/convert.go for the request/response
// struct shapes and field names, generalized from the teacher's
// text-only conversion to the full tool_use/tool_result round trip the
// spec requires, and on the reference streaming translator pattern for
// the event-sequencing state machine.
package translate

import "encoding/json"

// AnthropicRequest is the inbound POST /v1/messages body.
type AnthropicRequest struct {
	Model         string            `json:"model"`
	Messages      []AnthropicMessage `json:"messages"`
	System        json.RawMessage   `json:"system,omitempty"`
	MaxTokens     int               `json:"max_tokens"`
	Temperature   *float64          `json:"temperature,omitempty"`
	TopP          *float64          `json:"top_p,omitempty"`
	Stream        bool              `json:"stream,omitempty"`
	StopSequences []string          `json:"stop_sequences,omitempty"`
	Tools         []AnthropicTool   `json:"tools,omitempty"`
	Metadata      *AnthropicMetadata `json:"metadata,omitempty"`
}

// AnthropicMetadata carries the optional session stickiness key (spec §6
// X-Session-Id is the transport-level carrier; user_id is the
// request-body-level equivalent some Anthropic clients send instead).
type AnthropicMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

// AnthropicMessage is one turn; Content is either a bare string or an array
// of content blocks, so it stays json.RawMessage until decodeBlocks runs.
type AnthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// AnthropicContentBlock is the decoded form of one element of Content.
type AnthropicContentBlock struct {
	Type string `json:"type"`

	// text blocks
	Text string `json:"text,omitempty"`

	// tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// AnthropicTool is the inbound tool definition.
type AnthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// AnthropicResponseMessage is the non-streaming response shape.
type AnthropicResponseMessage struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Model        string                  `json:"model"`
	Content      []AnthropicContentBlock `json:"content"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        AnthropicUsage          `json:"usage"`
}

// AnthropicUsage mirrors the Anthropic usage object.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// OpenAIRequest is what the translator sends to a node's
// /v1/chat/completions.
type OpenAIRequest struct {
	Model         string          `json:"model"`
	Messages      []OpenAIMessage `json:"messages"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Stop          []string        `json:"stop,omitempty"`
	Tools         []OpenAITool    `json:"tools,omitempty"`
}

// OpenAIMessage is one chat message; ToolCalls is set only on assistant
// messages that invoked tools, ToolCallID only on role:"tool" messages.
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// OpenAIToolCall is one function invocation in an assistant message.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIToolCallBody `json:"function"`
}

// OpenAIToolCallBody carries the function name and JSON-encoded arguments.
type OpenAIToolCallBody struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAITool is the outbound tool definition (schema-rewritten).
type OpenAITool struct {
	Type     string             `json:"type"`
	Function OpenAIToolFunction `json:"function"`
}

// OpenAIToolFunction carries the rewritten JSON Schema.
type OpenAIToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// OpenAIResponse is the non-streaming chat completion response.
type OpenAIResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []OpenAIChoice     `json:"choices"`
	Usage   *OpenAIUsage       `json:"usage,omitempty"`
}

// OpenAIChoice is one completion choice (the translator only uses index 0).
type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIUsage mirrors the OpenAI usage object.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// OpenAIStreamChunk is one `chat.completion.chunk` SSE payload.
type OpenAIStreamChunk struct {
	ID      string                   `json:"id"`
	Model   string                   `json:"model"`
	Choices []OpenAIStreamChoice     `json:"choices"`
	Usage   *OpenAIUsage             `json:"usage,omitempty"`
}

// OpenAIStreamChoice is one streamed delta.
type OpenAIStreamChoice struct {
	Index        int               `json:"index"`
	Delta        OpenAIStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

// OpenAIStreamDelta is the incremental content of one chunk.
type OpenAIStreamDelta struct {
	Role      string                   `json:"role,omitempty"`
	Content   string                   `json:"content,omitempty"`
	ToolCalls []OpenAIToolCallDelta    `json:"tool_calls,omitempty"`
}

// OpenAIToolCallDelta is one streamed fragment of a tool call.
type OpenAIToolCallDelta struct {
	Index    int                     `json:"index"`
	ID       string                  `json:"id,omitempty"`
	Type     string                  `json:"type,omitempty"`
	Function *OpenAIToolCallFnDelta  `json:"function,omitempty"`
}

// OpenAIToolCallFnDelta is one fragment of a tool call's function payload.
type OpenAIToolCallFnDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
