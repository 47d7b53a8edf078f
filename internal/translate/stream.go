package translate

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rpay/cluster-gateway/internal/gwerror"
	"github.com/rpay/cluster-gateway/internal/jsonstream"
)

// Event is one Anthropic SSE event the translator produces. Data is
// marshaled to JSON by the caller before being written as the `data:`
// field (spec §6 inbound SSE framing).
type Event struct {
	Type string
	Data map[string]interface{}
}

type openKind int

const (
	openNone openKind = iota
	openText
	openTool
)

type toolBlock struct {
	anthropicIndex int
	openAIIndex    int
	id             string
	name           string
	parser         *jsonstream.Parser
	started        bool
	closed         bool
	gotArguments   bool
}

// StreamTranslator consumes OpenAI `chat.completion.chunk` deltas and
// produces the Anthropic event sequence (spec §4.8 "OpenAI -> Anthropic
// streaming"). One instance is used for exactly one in-flight response; it
// holds no state shared across requests (spec §4.8 concurrency note).
// Grounded on the reference streaming translator pattern from the
// retrieval pack (OpenAI SSE -> Anthropic SSE state machine) and on the
// teacher's convert.go for field naming, generalized to carry tool calls
// through a jsonstream.Parser instead of buffering raw strings.
type StreamTranslator struct {
	messageID        string
	model            string
	messageStartSent bool

	nextIndex int
	open      openKind
	textIndex int

	tools       map[int]*toolBlock // keyed by OpenAI tool_calls[].index
	seenToolIDs map[string]bool

	finishReason   string
	outputTokens   int
	inputTokens    int
	usageSeen      bool
}

// NewStreamTranslator creates a translator for one response. model is used
// in the message_start event if the upstream response omits its own.
func NewStreamTranslator(model string) *StreamTranslator {
	return &StreamTranslator{
		messageID:   "msg_" + uuid.NewString(),
		model:       model,
		tools:       make(map[int]*toolBlock),
		seenToolIDs: make(map[string]bool),
	}
}

// Feed processes one OpenAI stream chunk and returns the Anthropic events
// it produces, in emission order.
func (t *StreamTranslator) Feed(chunk OpenAIStreamChunk) ([]Event, error) {
	var events []Event

	if !t.messageStartSent {
		if chunk.Model != "" {
			t.model = chunk.Model
		}
		events = append(events, t.messageStart())
	}

	if len(chunk.Choices) == 0 {
		return events, nil
	}
	choice := chunk.Choices[0]

	if chunk.Usage != nil {
		t.usageSeen = true
		t.inputTokens = chunk.Usage.PromptTokens
		t.outputTokens = chunk.Usage.CompletionTokens
	}

	if choice.Delta.Content != "" {
		ev, err := t.appendText(choice.Delta.Content)
		if err != nil {
			return events, err
		}
		events = append(events, ev...)
	}

	for _, tcd := range choice.Delta.ToolCalls {
		ev, err := t.appendToolDelta(tcd)
		if err != nil {
			return events, err
		}
		events = append(events, ev...)
	}

	if choice.FinishReason != nil {
		t.finishReason = *choice.FinishReason
	}

	return events, nil
}

// Finalize closes any still-open block and emits message_delta/message_stop
// (spec §4.8 "at stream end").
func (t *StreamTranslator) Finalize() []Event {
	var events []Event
	events = append(events, t.closeOpenBlock()...)

	usage := map[string]interface{}{"output_tokens": t.outputTokens}
	if t.usageSeen {
		usage["input_tokens"] = t.inputTokens
	}

	events = append(events, Event{
		Type: "message_delta",
		Data: map[string]interface{}{
			"type":  "message_delta",
			"delta": map[string]interface{}{"stop_reason": mapStopReason(t.finishReason), "stop_sequence": nil},
			"usage": usage,
		},
	})
	events = append(events, Event{Type: "message_stop", Data: map[string]interface{}{"type": "message_stop"}})
	return events
}

func (t *StreamTranslator) messageStart() Event {
	t.messageStartSent = true
	return Event{
		Type: "message_start",
		Data: map[string]interface{}{
			"type": "message_start",
			"message": map[string]interface{}{
				"id":      t.messageID,
				"type":    "message",
				"role":    "assistant",
				"model":   t.model,
				"content": []interface{}{},
				"usage":   map[string]interface{}{"input_tokens": 0, "output_tokens": 0},
			},
		},
	}
}

func (t *StreamTranslator) appendText(text string) ([]Event, error) {
	var events []Event
	if t.open == openTool {
		events = append(events, t.closeOpenBlock()...)
	}
	if t.open != openText {
		t.textIndex = t.nextIndex
		t.nextIndex++
		t.open = openText
		events = append(events, Event{
			Type: "content_block_start",
			Data: map[string]interface{}{
				"type":          "content_block_start",
				"index":         t.textIndex,
				"content_block": map[string]interface{}{"type": "text", "text": ""},
			},
		})
	}
	events = append(events, Event{
		Type: "content_block_delta",
		Data: map[string]interface{}{
			"type":  "content_block_delta",
			"index": t.textIndex,
			"delta": map[string]interface{}{"type": "text_delta", "text": text},
		},
	})
	return events, nil
}

func (t *StreamTranslator) appendToolDelta(tcd OpenAIToolCallDelta) ([]Event, error) {
	var events []Event

	tb, known := t.tools[tcd.Index]
	if !known {
		if t.open == openText || t.open == openTool {
			events = append(events, t.closeOpenBlock()...)
		}

		id := tcd.ID
		if id == "" {
			id = "toolu_" + uuid.NewString()
		}
		name := ""
		if tcd.Function != nil {
			name = tcd.Function.Name
		}
		tb = &toolBlock{
			openAIIndex: tcd.Index,
			id:          id,
			name:        name,
			parser:      jsonstream.NewParser(jsonstream.DefaultConfig()),
		}
		t.tools[tcd.Index] = tb
	}

	if !tb.started && tb.id != "" {
		if t.seenToolIDs[tb.id] {
			tb.started = true // dedupe: a repeated start for this id is coalesced
		} else {
			tb.anthropicIndex = t.nextIndex
			t.nextIndex++
			t.open = openTool
			tb.started = true
			t.seenToolIDs[tb.id] = true
			events = append(events, Event{
				Type: "content_block_start",
				Data: map[string]interface{}{
					"type":  "content_block_start",
					"index": tb.anthropicIndex,
					"content_block": map[string]interface{}{
						"type":  "tool_use",
						"id":    tb.id,
						"name":  tb.name,
						"input": map[string]interface{}{},
					},
				},
			})
		}
	}

	if tcd.Function != nil && tcd.Function.Name != "" && tb.name == "" {
		tb.name = tcd.Function.Name
	}

	if tcd.Function != nil && tcd.Function.Arguments != "" {
		res, err := tb.parser.Feed([]byte(tcd.Function.Arguments))
		if err != nil {
			return events, fmt.Errorf("translate: tool argument stream: %w", gwerror.New(gwerror.KindProtocolTranslation, "", "tool argument JSON parse failed", err))
		}
		tb.gotArguments = true
		events = append(events, Event{
			Type: "content_block_delta",
			Data: map[string]interface{}{
				"type":  "content_block_delta",
				"index": tb.anthropicIndex,
				"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": res.Delta},
			},
		})
	}

	return events, nil
}

// closeOpenBlock closes whichever block is currently open, if any, and
// returns the events to emit for it. A tool block that never received an
// `arguments` delta (some providers send only start/end) gets a synthetic
// `{}` input_json_delta first, so downstream clients always see at least
// one delta per tool_use block (spec §4.8).
func (t *StreamTranslator) closeOpenBlock() []Event {
	switch t.open {
	case openText:
		idx := t.textIndex
		t.open = openNone
		return []Event{{Type: "content_block_stop", Data: map[string]interface{}{"type": "content_block_stop", "index": idx}}}
	case openTool:
		for _, tb := range t.tools {
			if tb.started && !tb.closed && tb.anthropicIndex == t.currentOpenToolIndex() {
				var events []Event
				if !tb.gotArguments {
					events = append(events, Event{
						Type: "content_block_delta",
						Data: map[string]interface{}{
							"type":  "content_block_delta",
							"index": tb.anthropicIndex,
							"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": "{}"},
						},
					})
				}
				tb.closed = true
				t.open = openNone
				events = append(events, Event{Type: "content_block_stop", Data: map[string]interface{}{"type": "content_block_stop", "index": tb.anthropicIndex}})
				return events
			}
		}
		t.open = openNone
		return nil
	default:
		return nil
	}
}

// currentOpenToolIndex returns the anthropic block index of the most
// recently opened, not-yet-closed tool block.
func (t *StreamTranslator) currentOpenToolIndex() int {
	best := -1
	for _, tb := range t.tools {
		if tb.started && !tb.closed && tb.anthropicIndex > best {
			best = tb.anthropicIndex
		}
	}
	return best
}
