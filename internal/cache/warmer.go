package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/gwerror"
)

// WarmerConfig controls warmup concurrency and per-attempt timeout (spec
// §5.2 defaults: concurrency 3, timeout 10s).
type WarmerConfig struct {
	Concurrency int
	Timeout     time.Duration
}

// DefaultWarmerConfig mirrors spec defaults.
func DefaultWarmerConfig() WarmerConfig {
	return WarmerConfig{Concurrency: 3, Timeout: 10 * time.Second}
}

type warmRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

// WarmResult is one node's outcome from a warmup attempt (spec §4.5, §6:
// `{nodeId, success, hash, tokens, durationMs, error?}`).
type WarmResult struct {
	NodeID     string
	Success    bool
	Hash       string
	Tokens     int
	DurationMs int64
	Err        error
}

// WarmEvents are the callbacks the Warmer fires per node (spec §4.5, §6).
type WarmEvents interface {
	OnCacheWarmedUp(result WarmResult)
	OnCacheWarmupFailed(nodeID string, err error)
}

// NoopWarmEvents implements WarmEvents with no-ops.
type NoopWarmEvents struct{}

func (NoopWarmEvents) OnCacheWarmedUp(WarmResult)       {}
func (NoopWarmEvents) OnCacheWarmupFailed(string, error) {}

// Warmer pushes a system prompt to a set of nodes' /cache/warm endpoints with
// bounded concurrency, grounded on the teacher's internal/pool.AccountPool
// round-robin dispatch generalized to a fan-out-with-semaphore shape.
type Warmer struct {
	registry *Registry
	client   *http.Client
	cfg      WarmerConfig
	events   WarmEvents
}

// NewWarmer creates a warmer bound to registry. events may be nil.
func NewWarmer(registry *Registry, cfg WarmerConfig, events WarmEvents) *Warmer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if events == nil {
		events = NoopWarmEvents{}
	}
	return &Warmer{
		registry: registry,
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		events:   events,
	}
}

// WarmUpNodes issues a warm request to every node, capped at cfg.Concurrency
// in flight at once, and records each success into the registry. It fires
// OnCacheWarmedUp/OnCacheWarmupFailed per node and returns every node's
// WarmResult alongside an AggregateDispatchError only if every node failed;
// partial success is not an error (spec §5.2: "best effort across the
// pool").
func (w *Warmer) WarmUpNodes(ctx context.Context, nodes []cluster.Node, systemBlocks []string) ([]WarmResult, error) {
	fp := Fingerprint(systemBlocks)

	sem := make(chan struct{}, w.cfg.Concurrency)
	resultsCh := make(chan WarmResult, len(nodes))

	for _, n := range nodes {
		n := n
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			resultsCh <- w.warmOne(ctx, n, fp, systemBlocks)
		}()
	}

	agg := &gwerror.AggregateDispatchError{}
	results := make([]WarmResult, 0, len(nodes))
	successes := 0
	for range nodes {
		r := <-resultsCh
		results = append(results, r)
		if r.Success {
			successes++
			w.events.OnCacheWarmedUp(r)
			continue
		}
		if ge, ok := r.Err.(*gwerror.GatewayError); ok {
			agg.Add(ge)
		}
		w.events.OnCacheWarmupFailed(r.NodeID, r.Err)
	}

	if successes == 0 && len(nodes) > 0 {
		return results, agg
	}
	return results, nil
}

func (w *Warmer) warmOne(ctx context.Context, n cluster.Node, fingerprint string, systemBlocks []string) WarmResult {
	start := time.Now()

	payload, err := json.Marshal(warmRequest{SystemPrompt: joinBlocks(systemBlocks)})
	if err != nil {
		return WarmResult{NodeID: n.ID, Err: gwerror.New(gwerror.KindCacheWarmupFailed, n.ID, "encode warm payload", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.BaseURL+"/cache/warm", bytes.NewReader(payload))
	if err != nil {
		return WarmResult{NodeID: n.ID, Err: gwerror.New(gwerror.KindCacheWarmupFailed, n.ID, "build warm request", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return WarmResult{NodeID: n.ID, Err: gwerror.New(gwerror.KindCacheWarmupFailed, n.ID, "warm request failed", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return WarmResult{NodeID: n.ID, Err: gwerror.NewWithStatus(gwerror.KindCacheWarmupFailed, n.ID, resp.StatusCode, "non-2xx from /cache/warm", nil)}
	}

	// POST /cache/warm returns the same shape as GET /cache (spec §6); read
	// it rather than trusting the status code alone so the node's reported
	// hash/tokens/hitRate are what lands in the registry.
	var body cacheStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return WarmResult{NodeID: n.ID, Err: gwerror.New(gwerror.KindCacheWarmupFailed, n.ID, "decode warm response", err)}
	}

	hash := body.SystemPromptHash
	if hash == "" {
		hash = fingerprint
	}

	w.registry.Set(Entry{
		NodeID:      n.ID,
		Fingerprint: hash,
		Tokens:      body.Tokens,
		HitRate:     body.HitRate,
		WarmedAt:    start,
	})

	return WarmResult{
		NodeID:     n.ID,
		Success:    true,
		Hash:       hash,
		Tokens:     body.Tokens,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func joinBlocks(blocks []string) string {
	out := ""
	for i, b := range blocks {
		if i > 0 {
			out += "\n"
		}
		out += b
	}
	return out
}
