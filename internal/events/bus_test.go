package events

import (
	"errors"
	"log"
	"testing"

	"github.com/rpay/cluster-gateway/internal/cache"
	"github.com/rpay/cluster-gateway/internal/health"
)

func TestHealthAdapterFansOutToListeners(t *testing.T) {
	b := NewBus(log.Default())
	var got health.TransitionEvent
	var calls int
	b.OnStatusChange(func(ev health.TransitionEvent) {
		got = ev
		calls++
	})

	adapter := HealthAdapter{Bus: b}
	adapter.OnStatusChange(health.TransitionEvent{NodeID: "n1", Previous: health.StateInitializing, Next: health.StateHealthy})

	if calls != 1 || got.NodeID != "n1" {
		t.Fatalf("expected listener to be invoked with the event, got calls=%d ev=%+v", calls, got)
	}
}

func TestHealthAdapterRecoversListenerPanic(t *testing.T) {
	b := NewBus(log.Default())
	b.OnStatusChange(func(health.TransitionEvent) { panic("boom") })

	adapter := HealthAdapter{Bus: b}
	adapter.OnStatusChange(health.TransitionEvent{NodeID: "n1"})
}

func TestCacheSyncAdapterFansOutToListeners(t *testing.T) {
	b := NewBus(log.Default())
	var gotNode, gotFP string
	b.OnCacheSync(func(nodeID, fingerprint string) {
		gotNode = nodeID
		gotFP = fingerprint
	})

	adapter := CacheSyncAdapter{Bus: b}
	adapter.OnCacheSyncComplete("n1", "abc")

	if gotNode != "n1" || gotFP != "abc" {
		t.Fatalf("expected listener to receive node/fingerprint, got %s %s", gotNode, gotFP)
	}
}

func TestCacheSyncAdapterErrorDoesNotPanicWithoutListeners(t *testing.T) {
	b := NewBus(log.Default())
	adapter := CacheSyncAdapter{Bus: b}
	adapter.OnCacheSyncError("n1", nil)
}

func TestWarmAdapterFansOutToListeners(t *testing.T) {
	b := NewBus(log.Default())
	var got cache.WarmResult
	b.OnCacheWarm(func(result cache.WarmResult) { got = result })

	adapter := WarmAdapter{Bus: b}
	adapter.OnCacheWarmedUp(cache.WarmResult{NodeID: "n1", Success: true, Hash: "abc", Tokens: 128})

	if got.NodeID != "n1" || got.Hash != "abc" || got.Tokens != 128 {
		t.Fatalf("expected listener to receive the warm result, got %+v", got)
	}
}

func TestWarmAdapterFailureFansOutToListeners(t *testing.T) {
	b := NewBus(log.Default())
	var gotNode string
	var gotErr error
	b.OnCacheWarmErr(func(nodeID string, err error) {
		gotNode = nodeID
		gotErr = err
	})

	adapter := WarmAdapter{Bus: b}
	boom := errors.New("boom")
	adapter.OnCacheWarmupFailed("n1", boom)

	if gotNode != "n1" || gotErr != boom {
		t.Fatalf("expected listener to receive node/error, got %s %v", gotNode, gotErr)
	}
}
