package router

import (
	"sort"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/health"
)

// Strategy selects the fallback-tier ordering policy (spec §4.6, §6 routing
// sub-section). CacheAware is the default and is exactly the tiered
// algorithm below; LeastLoaded and RoundRobin skip the cache tier entirely.
type Strategy string

const (
	StrategyCacheAware  Strategy = "cache-aware"
	StrategyLeastLoaded Strategy = "least-loaded"
	StrategyRoundRobin  Strategy = "round-robin"
)

// buildCandidates implements spec §4.6 steps 2-5: tier C (cache-hit,
// eligible) ahead of A (healthy) ahead of B (degraded), each tier sorted by
// ascending in-flight, then ascending avgLatency, then nodeID. Session
// stickiness, if the sticky node is eligible, is hoisted to the very front.
func (r *Router) buildCandidates(fingerprint, sessionID string) []cluster.Node {
	r.mu.RLock()
	nodes := make([]cluster.Node, len(r.nodes))
	copy(nodes, r.nodes)
	r.mu.RUnlock()

	byID := make(map[string]cluster.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	cacheHolders := make(map[string]struct{})
	if r.strategy == StrategyCacheAware && fingerprint != "" {
		for _, id := range r.registry.FindNodesWithCache(fingerprint) {
			cacheHolders[id] = struct{}{}
		}
	}

	var tierC, tierA, tierB []cluster.Node
	for _, n := range nodes {
		state := r.tracker.State(n.ID)
		if !state.Eligible() {
			continue
		}
		switch {
		case r.strategy == StrategyCacheAware:
			if _, inCache := cacheHolders[n.ID]; inCache {
				tierC = append(tierC, n)
			} else if state == health.StateHealthy {
				tierA = append(tierA, n)
			} else {
				tierB = append(tierB, n)
			}
		case state == health.StateHealthy:
			tierA = append(tierA, n)
		default:
			tierB = append(tierB, n)
		}
	}

	sortTier := func(tier []cluster.Node) {
		sort.Slice(tier, func(i, j int) bool {
			ii, ij := r.inflight.get(tier[i].ID), r.inflight.get(tier[j].ID)
			if ii != ij {
				return ii < ij
			}
			li := r.tracker.Snapshot(tier[i].ID).AvgLatency
			lj := r.tracker.Snapshot(tier[j].ID).AvgLatency
			if li != lj {
				return li < lj
			}
			return tier[i].ID < tier[j].ID
		})
	}
	sortTier(tierC)
	sortTier(tierA)
	sortTier(tierB)

	if r.strategy == StrategyRoundRobin {
		tierA = append(tierA, tierB...)
		tierB = nil
		tierA = r.roundRobinRotate(tierA)
	}

	out := make([]cluster.Node, 0, len(tierC)+len(tierA)+len(tierB))
	out = append(out, tierC...)
	out = append(out, tierA...)
	out = append(out, tierB...)

	if sessionID != "" {
		if stickyID, ok := r.sticky.Lookup(sessionID); ok {
			if n, ok := byID[stickyID]; ok && r.tracker.Eligible(stickyID) {
				out = hoistToFront(out, n)
			}
			// sticky node ineligible or unknown: preference dropped silently.
		}
	}

	return out
}

func hoistToFront(nodes []cluster.Node, target cluster.Node) []cluster.Node {
	filtered := make([]cluster.Node, 0, len(nodes))
	filtered = append(filtered, target)
	for _, n := range nodes {
		if n.ID != target.ID {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

func (r *Router) roundRobinRotate(nodes []cluster.Node) []cluster.Node {
	if len(nodes) == 0 {
		return nodes
	}
	r.mu.Lock()
	idx := r.rrIndex % len(nodes)
	r.rrIndex++
	r.mu.Unlock()
	return append(append([]cluster.Node{}, nodes[idx:]...), nodes[:idx]...)
}
