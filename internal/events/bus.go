// Package events is the central callback bus design note §9 calls for: a
// single Bus, wrapped by the HealthAdapter, CacheSyncAdapter, and
// WarmAdapter types that implement health.Events, cache.SyncEvents, and
// cache.WarmEvents, so internal/health and internal/cache never import each
// other or internal/router to notify them of state changes. Every dispatch
// is wrapped in a recover(), same discipline the teacher's UsageCommitter
// (internal/proxy/usage_committer.go) applies around its async goroutine,
// generalized here from "retry a single HTTP POST" to "never let one
// listener's panic take down the health/cache poll loop that called it."
package events

import (
	"log"
	"sync"

	"github.com/rpay/cluster-gateway/internal/cache"
	"github.com/rpay/cluster-gateway/internal/health"
)

// StatusChangeListener is notified of a node health transition.
type StatusChangeListener func(health.TransitionEvent)

// HealthCheckListener is notified after each probe or real-request outcome.
type HealthCheckListener func(nodeID string, success bool, latencyMs int64, err error)

// CacheSyncListener is notified after a cache registry sync against a node;
// fingerprint is empty when the node reported no cached prompt (spec §6
// /cache shape: one hash per node, not a list).
type CacheSyncListener func(nodeID, fingerprint string)

// CacheSyncErrorListener is notified when a cache sync against a node fails.
type CacheSyncErrorListener func(nodeID string, err error)

// CacheWarmListener is notified after a successful cache warm (spec §4.5,
// §6 /cache/warm result).
type CacheWarmListener func(result cache.WarmResult)

// CacheWarmupFailedListener is notified when a node's warm attempt fails.
type CacheWarmupFailedListener func(nodeID string, err error)

// Bus fans out health, cache-sync, and cache-warm callbacks to any number of
// registered listeners, logging every event and recovering from listener
// panics so a broken listener can't break the poll loop that fired it. Bus
// itself does not satisfy health.Events, cache.SyncEvents, or
// cache.WarmEvents; HealthAdapter, CacheSyncAdapter, and WarmAdapter do, by
// delegating to it.
type Bus struct {
	logger *log.Logger

	mu             sync.RWMutex
	statusChange   []StatusChangeListener
	healthCheck    []HealthCheckListener
	cacheSync      []CacheSyncListener
	cacheSyncError []CacheSyncErrorListener
	cacheWarm      []CacheWarmListener
	cacheWarmError []CacheWarmupFailedListener
}

// NewBus creates a Bus. logger may be nil, in which case log.Default() is
// used the way the teacher's constructors fall back to a default logger.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{logger: logger}
}

// OnStatusChange registers a listener for health state transitions.
func (b *Bus) OnStatusChange(fn StatusChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusChange = append(b.statusChange, fn)
}

// OnHealthCheck registers a listener for per-probe outcomes.
func (b *Bus) OnHealthCheck(fn HealthCheckListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthCheck = append(b.healthCheck, fn)
}

// OnCacheSync registers a listener for successful cache syncs.
func (b *Bus) OnCacheSync(fn CacheSyncListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheSync = append(b.cacheSync, fn)
}

// OnCacheSyncErr registers a listener for cache sync failures.
func (b *Bus) OnCacheSyncErr(fn CacheSyncErrorListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheSyncError = append(b.cacheSyncError, fn)
}

// OnCacheWarm registers a listener for successful cache warms.
func (b *Bus) OnCacheWarm(fn CacheWarmListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheWarm = append(b.cacheWarm, fn)
}

// OnCacheWarmErr registers a listener for cache warm failures.
func (b *Bus) OnCacheWarmErr(fn CacheWarmupFailedListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheWarmError = append(b.cacheWarmError, fn)
}

// --- health.Events ---

func (b *Bus) DispatchStatusChange(ev health.TransitionEvent) {
	b.logger.Printf("[health] node=%s %s -> %s (%s)", ev.NodeID, ev.Previous, ev.Next, ev.Reason)

	b.mu.RLock()
	listeners := append([]StatusChangeListener(nil), b.statusChange...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		b.safeStatusChange(fn, ev)
	}
}

func (b *Bus) DispatchHealthCheck(nodeID string, success bool, latencyMs int64, err error) {
	if !success {
		b.logger.Printf("[health] probe failed node=%s latency_ms=%d err=%v", nodeID, latencyMs, err)
	}

	b.mu.RLock()
	listeners := append([]HealthCheckListener(nil), b.healthCheck...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		b.safeHealthCheck(fn, nodeID, success, latencyMs, err)
	}
}

// --- cache.SyncEvents ---

func (b *Bus) DispatchCacheSyncComplete(nodeID, fingerprint string) {
	b.mu.RLock()
	listeners := append([]CacheSyncListener(nil), b.cacheSync...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		b.safeCacheSync(fn, nodeID, fingerprint)
	}
}

func (b *Bus) DispatchCacheSyncError(nodeID string, err error) {
	b.logger.Printf("[cache] sync failed node=%s err=%v", nodeID, err)

	b.mu.RLock()
	listeners := append([]CacheSyncErrorListener(nil), b.cacheSyncError...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		b.safeCacheSyncErr(fn, nodeID, err)
	}
}

// --- cache.WarmEvents ---

func (b *Bus) DispatchCacheWarmedUp(result cache.WarmResult) {
	b.logger.Printf("[cache] warmed node=%s hash=%s tokens=%d duration_ms=%d", result.NodeID, result.Hash, result.Tokens, result.DurationMs)

	b.mu.RLock()
	listeners := append([]CacheWarmListener(nil), b.cacheWarm...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		b.safeCacheWarm(fn, result)
	}
}

func (b *Bus) DispatchCacheWarmupFailed(nodeID string, err error) {
	b.logger.Printf("[cache] warmup failed node=%s err=%v", nodeID, err)

	b.mu.RLock()
	listeners := append([]CacheWarmupFailedListener(nil), b.cacheWarmError...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		b.safeCacheWarmErr(fn, nodeID, err)
	}
}

func (b *Bus) safeStatusChange(fn StatusChangeListener, ev health.TransitionEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[events] status-change listener panicked: %v", r)
		}
	}()
	fn(ev)
}

func (b *Bus) safeHealthCheck(fn HealthCheckListener, nodeID string, success bool, latencyMs int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[events] health-check listener panicked: %v", r)
		}
	}()
	fn(nodeID, success, latencyMs, err)
}

func (b *Bus) safeCacheSync(fn CacheSyncListener, nodeID, fingerprint string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[events] cache-sync listener panicked: %v", r)
		}
	}()
	fn(nodeID, fingerprint)
}

func (b *Bus) safeCacheSyncErr(fn CacheSyncErrorListener, nodeID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[events] cache-sync-error listener panicked: %v", r)
		}
	}()
	fn(nodeID, err)
}

func (b *Bus) safeCacheWarm(fn CacheWarmListener, result cache.WarmResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[events] cache-warm listener panicked: %v", r)
		}
	}()
	fn(result)
}

func (b *Bus) safeCacheWarmErr(fn CacheWarmupFailedListener, nodeID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[events] cache-warm-error listener panicked: %v", r)
		}
	}()
	fn(nodeID, err)
}

// HealthAdapter exposes Bus as health.Events without colliding with Bus's
// own On*-prefixed subscription methods.
type HealthAdapter struct{ Bus *Bus }

func (a HealthAdapter) OnStatusChange(ev health.TransitionEvent) { a.Bus.DispatchStatusChange(ev) }

func (a HealthAdapter) OnHealthCheck(nodeID string, success bool, latencyMs int64, err error) {
	a.Bus.DispatchHealthCheck(nodeID, success, latencyMs, err)
}

// CacheSyncAdapter exposes Bus as cache.SyncEvents.
type CacheSyncAdapter struct{ Bus *Bus }

func (a CacheSyncAdapter) OnCacheSyncComplete(nodeID, fingerprint string) {
	a.Bus.DispatchCacheSyncComplete(nodeID, fingerprint)
}

func (a CacheSyncAdapter) OnCacheSyncError(nodeID string, err error) {
	a.Bus.DispatchCacheSyncError(nodeID, err)
}

// WarmAdapter exposes Bus as cache.WarmEvents.
type WarmAdapter struct{ Bus *Bus }

func (a WarmAdapter) OnCacheWarmedUp(result cache.WarmResult) { a.Bus.DispatchCacheWarmedUp(result) }

func (a WarmAdapter) OnCacheWarmupFailed(nodeID string, err error) {
	a.Bus.DispatchCacheWarmupFailed(nodeID, err)
}
