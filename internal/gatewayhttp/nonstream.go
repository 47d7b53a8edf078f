package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/router"
	"github.com/rpay/cluster-gateway/internal/translate"
)

// dispatchNonStreaming drives one non-streaming /v1/messages request
// through the router and writes the single JSON Message response once a
// node commits (spec §6 "Non-streaming returns a single JSON Message").
func (h *Handler) dispatchNonStreaming(ctx context.Context, w http.ResponseWriter, req *translate.AnthropicRequest, openAIReq *translate.OpenAIRequest, fingerprint, sessionID string) (outcome, error) {
	var picked *translate.AnthropicResponseMessage
	var cacheHit bool

	nodeID, err := h.router.Dispatch(ctx, fingerprint, sessionID, func(ctx context.Context, node cluster.Node) router.AttemptResult {
		attemptStart := time.Now()
		resp, hit, attemptErr := h.traceChatCompletions(ctx, node, req.Model, openAIReq)
		latency := time.Since(attemptStart)
		if attemptErr != nil {
			return router.AttemptResult{Err: attemptErr, Latency: latency}
		}
		picked = translate.ToAnthropicResponse(resp, req.Model)
		cacheHit = hit
		return router.AttemptResult{Committed: true, Latency: latency, CacheHit: hit}
	})
	if err != nil {
		status, kind := mapDispatchError(err)
		writeAnthropicError(w, status, kind, err.Error())
		return outcome{nodeID: nodeID}, err
	}

	payload, marshalErr := json.Marshal(picked)
	if marshalErr != nil {
		writeAnthropicError(w, http.StatusInternalServerError, "api_error", "failed to encode response")
		return outcome{nodeID: nodeID}, marshalErr
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)

	return outcome{
		nodeID:       nodeID,
		success:      true,
		cacheHit:     cacheHit,
		bytes:        int64(len(payload)),
		inputTokens:  picked.Usage.InputTokens,
		outputTokens: picked.Usage.OutputTokens,
	}, nil
}
