// Package router implements the cluster router/dispatcher (spec §4.6):
// candidate scoring and ordering over the health tracker and cache
// registry, session stickiness, in-flight bookkeeping, and the retry
// policy across pre-commit failures. Grounded on the teacher's
// internal/proxy.Router (weighted candidate selection over a small
// in-memory slice) generalized from DB-backed weights to the cache-aware
// tiering rules spec.md requires.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/rpay/cluster-gateway/internal/cache"
	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/gwerror"
	"github.com/rpay/cluster-gateway/internal/health"
)

// AttemptResult is what the caller-supplied AttemptFunc reports back after
// trying one node.
type AttemptResult struct {
	// Committed is true once the first byte of a streaming response (or the
	// full body of a non-streaming one) has been delivered downstream; a
	// committed attempt is never retried even if Err is later set (spec
	// §4.6 "no attempt is retried against the same node" / post-commit
	// errors terminate rather than fail over).
	Committed bool
	Err       error
	Latency   time.Duration
	CacheHit  bool
}

// AttemptFunc performs one dispatch attempt against node. ctx is cancelled
// if the inbound request is cancelled.
type AttemptFunc func(ctx context.Context, node cluster.Node) AttemptResult

// Config controls retry policy and default strategy (spec §6 routing
// sub-section).
type Config struct {
	Strategy     Strategy
	MaxRetries   int
	RetryDelay   time.Duration
}

// DefaultConfig mirrors spec defaults.
func DefaultConfig() Config {
	return Config{Strategy: StrategyCacheAware, MaxRetries: 2, RetryDelay: 200 * time.Millisecond}
}

// Router selects a node per request and drives the retry loop.
type Router struct {
	tracker  *health.Tracker
	registry *cache.Registry
	sticky   *StickyStore
	inflight *inflightCounters
	strategy Strategy
	cfg      Config

	mu      sync.RWMutex
	nodes   []cluster.Node
	rrIndex int
}

// NewRouter creates a router over the given cluster of nodes.
func NewRouter(nodes []cluster.Node, tracker *health.Tracker, registry *cache.Registry, cfg Config) *Router {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyCacheAware
	}
	return &Router{
		tracker:  tracker,
		registry: registry,
		sticky:   NewStickyStore(DefaultStickyCapacity),
		inflight: newInflightCounters(),
		strategy: cfg.Strategy,
		cfg:      cfg,
		nodes:    append([]cluster.Node{}, nodes...),
	}
}

// UpdateNodes replaces the node set the router considers (e.g. after
// discovery refresh; the spec treats discovery as startup-only, but the
// router itself stays agnostic to when its caller calls this).
func (r *Router) UpdateNodes(nodes []cluster.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append([]cluster.Node{}, nodes...)
}

// InFlight exposes a node's current in-flight count (for the /metrics
// endpoint and tests).
func (r *Router) InFlight(nodeID string) int { return r.inflight.get(nodeID) }

// Dispatch expires stale cache entries, builds the ordered candidate list,
// and attempts candidates in order until one commits, one succeeds, or the
// candidate list (bounded by cfg.MaxRetries+1 attempts) is exhausted (spec
// §4.6).
func (r *Router) Dispatch(ctx context.Context, fingerprint, sessionID string, attempt AttemptFunc) (string, error) {
	r.registry.ExpireStaleEntries(time.Now())
	candidates := r.buildCandidates(fingerprint, sessionID)

	if len(candidates) == 0 {
		return "", gwerror.New(gwerror.KindNodeOffline, "", "no eligible candidates", nil)
	}

	maxAttempts := r.cfg.MaxRetries + 1
	if maxAttempts > len(candidates) {
		maxAttempts = len(candidates)
	}

	agg := &gwerror.AggregateDispatchError{}
	for i := 0; i < maxAttempts; i++ {
		node := candidates[i]
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r.inflight.inc(node.ID)
		result := attempt(ctx, node)
		r.inflight.dec(node.ID)

		if result.Err == nil {
			r.tracker.RecordSuccess(node.ID, result.Latency)
			if result.CacheHit && fingerprint != "" {
				r.registry.Touch(node.ID, fingerprint, time.Now())
				r.registry.RecordHit(node.ID, time.Now())
			}
			r.sticky.Remember(sessionID, node.ID)
			return node.ID, nil
		}

		if result.Committed {
			// Post-commit failure: do not fail over, surface to the caller
			// (translator turns this into a mid-stream `error` event).
			r.tracker.RecordFailure(node.ID, result.Err)
			return node.ID, gwerror.New(gwerror.KindNodeDispatchMidStream, node.ID, "mid-stream failure", result.Err)
		}

		r.tracker.RecordFailure(node.ID, result.Err)
		agg.Add(gwerror.New(gwerror.KindNodeDispatchPreCommit, node.ID, "pre-commit failure", result.Err))

		if i < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.cfg.RetryDelay):
			}
		}
	}

	return "", agg
}
