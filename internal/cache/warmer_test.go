package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
)

func TestWarmerRecordsSuccessIntoRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cacheStateResponse{SystemPromptHash: "fp1", Tokens: 64, Cached: true})
	}))
	defer srv.Close()

	reg := NewRegistry(time.Minute)
	w := NewWarmer(reg, DefaultWarmerConfig(), nil)

	results, err := w.WarmUpNodes(context.Background(), []cluster.Node{{ID: "n1", BaseURL: srv.URL}}, []string{"you are a helper"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if reg.Size() != 1 {
		t.Fatalf("expected registry to record the warm, got size %d", reg.Size())
	}
	if len(results) != 1 || !results[0].Success || results[0].Hash != "fp1" || results[0].Tokens != 64 {
		t.Fatalf("expected a successful result carrying the node's reported hash/tokens, got %+v", results)
	}
	e, ok := reg.Get("n1")
	if !ok || e.Tokens != 64 {
		t.Fatalf("expected registry entry to carry the node's reported token count, got %+v", e)
	}
}

func TestWarmerReturnsAggregateErrorWhenAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := NewRegistry(time.Minute)
	w := NewWarmer(reg, DefaultWarmerConfig(), nil)

	results, err := w.WarmUpNodes(context.Background(), []cluster.Node{{ID: "n1", BaseURL: srv.URL}}, []string{"x"})
	if err == nil {
		t.Fatalf("expected an aggregate error when every node fails")
	}
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a failed result for n1, got %+v", results)
	}
}

func TestWarmerPartialSuccessIsNotAnError(t *testing.T) {
	var calls int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(cacheStateResponse{SystemPromptHash: "fp1", Cached: true})
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	reg := NewRegistry(time.Minute)
	w := NewWarmer(reg, DefaultWarmerConfig(), nil)

	results, err := w.WarmUpNodes(context.Background(), []cluster.Node{
		{ID: "good", BaseURL: ok.URL},
		{ID: "bad", BaseURL: bad.URL},
	}, []string{"x"})
	if err != nil {
		t.Fatalf("expected no error on partial success, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one call to the healthy node")
	}
	if len(results) != 2 {
		t.Fatalf("expected a result for both nodes, got %d", len(results))
	}
}

func TestWarmerFiresPerNodeCallbacks(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cacheStateResponse{SystemPromptHash: "fp1", Tokens: 10, Cached: true})
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	var warmed []WarmResult
	var failed []string
	events := &recordingWarmEvents{
		warmed: &warmed,
		failed: &failed,
	}

	reg := NewRegistry(time.Minute)
	w := NewWarmer(reg, DefaultWarmerConfig(), events)

	if _, err := w.WarmUpNodes(context.Background(), []cluster.Node{
		{ID: "good", BaseURL: ok.URL},
		{ID: "bad", BaseURL: bad.URL},
	}, []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(warmed) != 1 || warmed[0].NodeID != "good" {
		t.Fatalf("expected OnCacheWarmedUp for the healthy node, got %+v", warmed)
	}
	if len(failed) != 1 || failed[0] != "bad" {
		t.Fatalf("expected OnCacheWarmupFailed for the unhealthy node, got %v", failed)
	}
}

type recordingWarmEvents struct {
	warmed *[]WarmResult
	failed *[]string
}

func (r *recordingWarmEvents) OnCacheWarmedUp(result WarmResult) { *r.warmed = append(*r.warmed, result) }
func (r *recordingWarmEvents) OnCacheWarmupFailed(nodeID string, err error) {
	*r.failed = append(*r.failed, nodeID)
}

func TestWarmerRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_ = json.NewEncoder(w).Encode(cacheStateResponse{SystemPromptHash: "fp1", Cached: true})
	}))
	defer srv.Close()

	reg := NewRegistry(time.Minute)
	w := NewWarmer(reg, WarmerConfig{Concurrency: 2, Timeout: time.Second}, nil)

	nodes := make([]cluster.Node, 6)
	for i := range nodes {
		nodes[i] = cluster.Node{ID: string(rune('a' + i)), BaseURL: srv.URL}
	}

	if _, err := w.WarmUpNodes(context.Background(), nodes, []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&maxInFlight) > 2 {
		t.Fatalf("expected concurrency capped at 2, saw %d in flight", maxInFlight)
	}
}
