package gatewayhttp

import (
	"context"
	"io"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/telemetry"
	"github.com/rpay/cluster-gateway/internal/translate"
)

// traceChatCompletions wraps one non-streaming dispatch attempt in a span
// (SPEC_FULL.md §2 domain stack: "optional span around each dispatch
// attempt").
func (h *Handler) traceChatCompletions(ctx context.Context, node cluster.Node, model string, body *translate.OpenAIRequest) (*translate.OpenAIResponse, bool, error) {
	type result struct {
		resp *translate.OpenAIResponse
		hit  bool
	}
	r, err := telemetry.RecordSpan(ctx, h.tracer, "gateway.dispatch", telemetry.DispatchAttributes(node.ID, model, false),
		func(ctx context.Context) (result, error) {
			resp, hit, err := h.client.ChatCompletions(ctx, node, body)
			return result{resp: resp, hit: hit}, err
		})
	return r.resp, r.hit, err
}

// traceChatCompletionsStream is the streaming counterpart.
func (h *Handler) traceChatCompletionsStream(ctx context.Context, node cluster.Node, model string, body *translate.OpenAIRequest) (io.ReadCloser, bool, error) {
	type result struct {
		body io.ReadCloser
		hit  bool
	}
	r, err := telemetry.RecordSpan(ctx, h.tracer, "gateway.dispatch", telemetry.DispatchAttributes(node.ID, model, true),
		func(ctx context.Context) (result, error) {
			stream, hit, streamErr := h.client.ChatCompletionsStream(ctx, node, body)
			return result{body: stream, hit: hit}, streamErr
		})
	return r.body, r.hit, err
}
