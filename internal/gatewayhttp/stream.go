package gatewayhttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/router"
	"github.com/rpay/cluster-gateway/internal/sse"
	"github.com/rpay/cluster-gateway/internal/translate"
	"github.com/rpay/cluster-gateway/internal/upstream/openaicompat"
)

// dispatchStreaming drives one streaming /v1/messages request, feeding the
// node's chat.completion.chunk stream through the protocol translator and
// writing the resulting Anthropic event sequence as it's produced (spec §6
// "emitting the Anthropic event stream as SSE"). Writing the first event
// marks the attempt committed: a failure after that point is surfaced as
// an `error` event rather than retried against a different node (spec
// §4.6 "no attempt is retried against the same node" / post-commit
// failures terminate rather than fail over).
func (h *Handler) dispatchStreaming(ctx context.Context, w http.ResponseWriter, req *translate.AnthropicRequest, openAIReq *translate.OpenAIRequest, fingerprint, sessionID string) (outcome, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var writer *sse.Writer
	var bytesWritten int64
	var cacheHit bool
	var inputTokens, outputTokens int

	nodeID, err := h.router.Dispatch(ctx, fingerprint, sessionID, func(ctx context.Context, node cluster.Node) router.AttemptResult {
		attemptStart := time.Now()
		body, hit, streamErr := h.traceChatCompletionsStream(ctx, node, req.Model, openAIReq)
		if streamErr != nil {
			return router.AttemptResult{Err: streamErr, Latency: time.Since(attemptStart)}
		}
		defer body.Close()
		cacheHit = hit

		if writer == nil {
			var writerErr error
			writer, writerErr = sse.NewWriter(w)
			if writerErr != nil {
				return router.AttemptResult{Err: writerErr, Latency: time.Since(attemptStart)}
			}
		}

		translator := translate.NewStreamTranslator(req.Model)
		parser := sse.NewParser(body, maxSSELineBytes)
		committed := false

		emit := func(ev translate.Event) error {
			payload, marshalErr := json.Marshal(ev.Data)
			if marshalErr != nil {
				return marshalErr
			}
			bytesWritten += int64(len(payload))
			committed = true
			if ev.Type == "message_delta" {
				inputTokens, outputTokens = usageFromDelta(ev.Data)
			}
			return writer.WriteNamedEvent(ev.Type, string(payload))
		}

		for {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return router.AttemptResult{Committed: committed, Err: ctxErr, Latency: time.Since(attemptStart)}
			}

			ev, nextErr := parser.Next()
			if nextErr == io.EOF {
				break
			}
			if nextErr != nil {
				return router.AttemptResult{Committed: committed, Err: nextErr, Latency: time.Since(attemptStart)}
			}
			if sse.IsDone(ev.Data) {
				break
			}

			chunk, parseErr := openaicompat.ParseStreamChunk(ev.Data)
			if parseErr != nil {
				return router.AttemptResult{Committed: committed, Err: parseErr, Latency: time.Since(attemptStart)}
			}

			events, feedErr := translator.Feed(*chunk)
			if feedErr != nil {
				return router.AttemptResult{Committed: committed, Err: feedErr, Latency: time.Since(attemptStart)}
			}
			for _, e := range events {
				if emitErr := emit(e); emitErr != nil {
					return router.AttemptResult{Committed: committed, Err: emitErr, Latency: time.Since(attemptStart)}
				}
			}
		}

		for _, e := range translator.Finalize() {
			if emitErr := emit(e); emitErr != nil {
				return router.AttemptResult{Committed: committed, Err: emitErr, Latency: time.Since(attemptStart)}
			}
		}
		writer.WriteDone()

		return router.AttemptResult{Committed: true, Latency: time.Since(attemptStart), CacheHit: hit}
	})

	out := outcome{nodeID: nodeID, bytes: bytesWritten, inputTokens: inputTokens, outputTokens: outputTokens}
	if err != nil {
		if writer != nil {
			writeStreamError(writer, err)
			return out, err
		}
		status, kind := mapDispatchError(err)
		writeAnthropicError(w, status, kind, err.Error())
		return out, err
	}

	out.success = true
	out.cacheHit = cacheHit
	return out, nil
}

func writeStreamError(writer *sse.Writer, err error) {
	payload, marshalErr := json.Marshal(map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    "api_error",
			"message": err.Error(),
		},
	})
	if marshalErr != nil {
		return
	}
	writer.WriteNamedEvent("error", string(payload))
}

func usageFromDelta(data map[string]interface{}) (int, int) {
	usage, ok := data["usage"].(map[string]interface{})
	if !ok {
		return 0, 0
	}
	toInt := func(v interface{}) int {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		default:
			return 0
		}
	}
	return toInt(usage["input_tokens"]), toInt(usage["output_tokens"])
}
