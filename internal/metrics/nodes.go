package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/health"
	"github.com/rpay/cluster-gateway/internal/router"
)

// NodeSnapshot is the per-node slice of the debug /metrics endpoint,
// supplementing the teacher's aggregate-only Snapshot with the health
// state and in-flight count the router needs visibility into.
type NodeSnapshot struct {
	NodeID       string  `json:"node_id"`
	State        string  `json:"state"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	InFlight     int     `json:"in_flight"`
}

// ExtendedSnapshot is the aggregate Snapshot plus a NodeSnapshot per
// cluster member.
type ExtendedSnapshot struct {
	Snapshot
	Nodes []NodeSnapshot `json:"nodes"`
}

// NodesSnapshot builds the per-node slice from the tracker and router.
func NodesSnapshot(tracker *health.Tracker, rt *router.Router, nodes []cluster.Node) []NodeSnapshot {
	out := make([]NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		win := tracker.Snapshot(n.ID)
		out = append(out, NodeSnapshot{
			NodeID:       n.ID,
			State:        string(tracker.State(n.ID)),
			SuccessRate:  win.SuccessRate,
			AvgLatencyMs: float64(win.AvgLatency.Milliseconds()),
			InFlight:     rt.InFlight(n.ID),
		})
	}
	return out
}

// HandlerWithNodes returns an http.HandlerFunc serving the aggregate
// performance snapshot enriched with per-node health/load state.
func (m *Metrics) HandlerWithNodes(tracker *health.Tracker, rt *router.Router, nodes []cluster.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := ExtendedSnapshot{
			Snapshot: m.Snapshot(),
			Nodes:    NodesSnapshot(tracker, rt, nodes),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	}
}
