package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rpay/cluster-gateway/internal/config"
)

// aggregatedModel is one entry in the cluster-wide /v1/models response:
// the union of every node's model catalogue, deduplicated by id, carrying
// the context window the router uses for candidate ordering.
type aggregatedModel struct {
	ID            string `json:"id"`
	ContextWindow int    `json:"context_window"`
}

// handleModels aggregates each node's GET /v1/models listing into one
// cluster-wide catalogue (SPEC_FULL.md §4 "/v1/models aggregation
// endpoint"), generalizing the teacher's per-provider discovery call to
// the whole cluster.
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	byID := make(map[string]aggregatedModel)

	var wg sync.WaitGroup
	for _, node := range h.nodes {
		node := node
		wg.Add(1)
		go func() {
			defer wg.Done()
			models, err := h.client.Models(ctx, node)
			if err != nil {
				h.logger.Printf("ERROR models node=%s err=%v", node.ID, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, m := range models {
				window := config.ContextWindowFor(m.ID, config.ModelDiscovery{ContextLength: m.ContextWindow})
				if existing, ok := byID[m.ID]; !ok || window > existing.ContextWindow {
					byID[m.ID] = aggregatedModel{ID: m.ID, ContextWindow: window}
				}
			}
		}()
	}
	wg.Wait()

	out := make([]aggregatedModel, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": out})
}
