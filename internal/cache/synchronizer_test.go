package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
)

func TestSynchronizerPullsStateIntoRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cacheStateResponse{SystemPromptHash: "fp1", Tokens: 256, Cached: true})
	}))
	defer srv.Close()

	reg := NewRegistry(time.Minute)
	s := NewSynchronizer(reg, time.Hour, nil)

	s.syncAll(context.Background(), []cluster.Node{{ID: "n1", BaseURL: srv.URL}})

	e, ok := reg.Get("n1")
	if !ok || e.Fingerprint != "fp1" || e.Tokens != 256 {
		t.Fatalf("expected n1's cache state to be recorded, got %+v ok=%v", e, ok)
	}
}

func TestSynchronizerUncachedResponseDeletesEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cacheStateResponse{Cached: false})
	}))
	defer srv.Close()

	reg := NewRegistry(time.Minute)
	reg.Set(Entry{NodeID: "n1", Fingerprint: "stale", WarmedAt: time.Now()})
	s := NewSynchronizer(reg, time.Hour, nil)

	s.syncAll(context.Background(), []cluster.Node{{ID: "n1", BaseURL: srv.URL}})

	if _, ok := reg.Get("n1"); ok {
		t.Fatalf("expected a not-cached response to clear n1's prior entry")
	}
}

func TestSynchronizerStopIsIdempotent(t *testing.T) {
	reg := NewRegistry(time.Minute)
	s := NewSynchronizer(reg, time.Hour, nil)
	s.Start(nil)
	s.Stop()
	s.Stop()
}

func TestSynchronizerStartTwiceNoop(t *testing.T) {
	reg := NewRegistry(time.Minute)
	s := NewSynchronizer(reg, time.Hour, nil)
	s.Start(nil)
	s.Start(nil)
	s.Stop()
}
