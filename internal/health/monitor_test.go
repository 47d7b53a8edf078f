package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
)

func TestMonitorProbesHealthyOnStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTracker(DefaultThresholds(), nil)
	mon := NewMonitor(tr, MonitorConfig{Interval: time.Hour, ProbeTimeout: time.Second}, nil)

	mon.Start([]cluster.Node{{ID: "n1", BaseURL: srv.URL}})
	defer mon.Stop()

	if got := tr.State("n1"); got != StateHealthy {
		t.Fatalf("expected HEALTHY after initial probe, got %s", got)
	}
}

func TestMonitorProbeFailureMarksDegradedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewTracker(DefaultThresholds(), nil)
	mon := NewMonitor(tr, MonitorConfig{Interval: time.Hour, ProbeTimeout: time.Second}, nil)

	mon.Start([]cluster.Node{{ID: "n1", BaseURL: srv.URL}})
	defer mon.Stop()

	if got := tr.State("n1"); got == StateHealthy {
		t.Fatalf("expected non-HEALTHY state after failing probe, got %s", got)
	}
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	tr := NewTracker(DefaultThresholds(), nil)
	mon := NewMonitor(tr, DefaultMonitorConfig(), nil)
	mon.Start(nil)
	mon.Stop()
	mon.Stop() // must not block or panic
	if mon.IsRunning() {
		t.Fatalf("expected monitor to report stopped")
	}
}

func TestMonitorStartTwiceIsNoop(t *testing.T) {
	tr := NewTracker(DefaultThresholds(), nil)
	mon := NewMonitor(tr, MonitorConfig{Interval: time.Hour, ProbeTimeout: time.Second}, nil)
	mon.Start(nil)
	mon.Start(nil) // second call must not spawn a second loop
	defer mon.Stop()
	if !mon.IsRunning() {
		t.Fatalf("expected monitor to be running")
	}
}
