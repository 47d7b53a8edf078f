// Package gatewayhttp implements the gateway's HTTP surface: the
// Anthropic-compatible POST /v1/messages endpoint (streaming and
// non-streaming) and the cluster-wide GET /v1/models aggregation
// endpoint, wiring together router, translate, cache, intent, and the
// per-node openaicompat client (spec §6 "Inbound HTTP"). Grounded on the
// teacher's internal/proxy.Handler/native_handler.go: the same
// usageCtx-style per-request struct, the runnerLogger "OK/ERROR
// [component] key=value ..." line convention, and the startTime/latency
// tracking idiom, generalized from a four-provider dispatch switch down
// to the single OpenAI-compatible node model this gateway targets.
package gatewayhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/rpay/cluster-gateway/internal/cache"
	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/gwerror"
	"github.com/rpay/cluster-gateway/internal/health"
	"github.com/rpay/cluster-gateway/internal/intent"
	"github.com/rpay/cluster-gateway/internal/metrics"
	"github.com/rpay/cluster-gateway/internal/router"
	"github.com/rpay/cluster-gateway/internal/translate"
	"github.com/rpay/cluster-gateway/internal/upstream/openaicompat"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// maxSSELineBytes bounds a single buffered SSE line read from a node,
// mirroring the streaming JSON parser's own overflow guard (spec §4.7).
const maxSSELineBytes = 1 << 20

// DefaultRequestTimeout is the per-node request timeout for the full body
// (spec §5 Timeouts: "Per-node request: configurable, default 60 s for
// the full body, no fixed time-to-first-byte").
const DefaultRequestTimeout = 60 * time.Second

// Handler serves the gateway's inbound Anthropic-compatible API.
type Handler struct {
	nodes      []cluster.Node
	router     *router.Router
	client     *openaicompat.Client
	classifier *intent.Classifier
	tracker    *health.Tracker
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	logger         *log.Logger
	runnerLogger   *log.Logger
	requestTimeout time.Duration
}

// Config bundles Handler's dependencies.
type Config struct {
	Nodes          []cluster.Node
	Router         *router.Router
	Client         *openaicompat.Client
	Classifier     *intent.Classifier
	Tracker        *health.Tracker
	Metrics        *metrics.Metrics
	Tracer         trace.Tracer
	Logger         *log.Logger
	RunnerLogger   *log.Logger
	RequestTimeout time.Duration
}

// NewHandler builds a Handler from cfg, filling in defaults for anything
// left zero.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.RunnerLogger == nil {
		cfg.RunnerLogger = log.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("cluster-gateway")
	}
	return &Handler{
		nodes:          cfg.Nodes,
		router:         cfg.Router,
		client:         cfg.Client,
		classifier:     cfg.Classifier,
		tracker:        cfg.Tracker,
		metrics:        cfg.Metrics,
		tracer:         cfg.Tracer,
		logger:         cfg.Logger,
		runnerLogger:   cfg.RunnerLogger,
		requestTimeout: cfg.RequestTimeout,
	}
}

// RegisterRoutes mounts the handler's endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/messages", h.handleMessages)
	mux.HandleFunc("/v1/models", h.handleModels)
	mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth is the gateway's own liveness probe, distinct from the
// per-node health the cluster tracker maintains.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","service":"cluster-gateway"}`))
}

// outcome is what each dispatch path reports back for metrics and logging.
type outcome struct {
	nodeID       string
	success      bool
	cacheHit     bool
	bytes        int64
	inputTokens  int
	outputTokens int
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req translate.AnthropicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "malformed JSON body: "+err.Error())
		return
	}
	if err := validateMessagesRequest(&req); err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	query := lastUserText(&req)
	classification := h.classifier.Classify(r.Context(), query)
	if classification.NeedsSearch && !hasTool(req.Tools, intent.WebSearchToolName) {
		req.Tools = append(req.Tools, intent.WebSearchTool())
	}

	openAIReq, systemBlocks, err := translate.ToOpenAIRequest(&req)
	if err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	fingerprint := cache.Fingerprint(systemBlocks)
	sessionID := sessionIDFor(r, &req)

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	start := time.Now()
	var out outcome
	var dispatchErr error
	if req.Stream {
		out, dispatchErr = h.dispatchStreaming(ctx, w, &req, openAIReq, fingerprint, sessionID)
	} else {
		out, dispatchErr = h.dispatchNonStreaming(ctx, w, &req, openAIReq, fingerprint, sessionID)
	}
	latency := time.Since(start)

	if h.metrics != nil {
		h.metrics.Record(latency.Milliseconds(), out.success, out.cacheHit)
		h.metrics.RecordBytes(out.bytes)
	}
	h.logOutcome(req.Model, req.Stream, out, latency, dispatchErr)
}

func (h *Handler) logOutcome(model string, stream bool, out outcome, latency time.Duration, err error) {
	if err != nil {
		h.runnerLogger.Printf("ERROR messages model=%s stream=%t node=%s latency=%s err=%v",
			model, stream, out.nodeID, latency, err)
		return
	}
	h.runnerLogger.Printf("OK messages model=%s stream=%t node=%s cache_hit=%t tokens_in=%d tokens_out=%d latency=%s bytes=%d",
		model, stream, out.nodeID, out.cacheHit, out.inputTokens, out.outputTokens, latency, out.bytes)
}

// validateMessagesRequest checks the minimum shape spec §6 requires of an
// inbound Anthropic Messages request.
func validateMessagesRequest(req *translate.AnthropicRequest) error {
	if req.Model == "" {
		return errors.New("model is required")
	}
	if req.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages must be non-empty")
	}
	return nil
}

// mapDispatchError turns a router.Dispatch error into an HTTP status and
// an Anthropic error-object type string (spec §7: NodeOffline -> 503;
// an exhausted retry budget across pre-commit failures -> 502).
func mapDispatchError(err error) (int, string) {
	var ge *gwerror.GatewayError
	if errors.As(err, &ge) {
		switch ge.Kind {
		case gwerror.KindNodeOffline:
			return http.StatusServiceUnavailable, "overloaded_error"
		case gwerror.KindNodeDispatchMidStream:
			return http.StatusBadGateway, "api_error"
		}
	}
	var agg *gwerror.AggregateDispatchError
	if errors.As(err, &agg) {
		return http.StatusBadGateway, "api_error"
	}
	return http.StatusInternalServerError, "api_error"
}

func writeAnthropicError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	})
}
