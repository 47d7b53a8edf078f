package health

import (
	"testing"
	"time"
)

func TestRollingWindowSnapshotEmpty(t *testing.T) {
	w := NewRollingWindow(time.Second, 4)
	snap := w.Snapshot()
	if snap.SampleCount != 0 || snap.SuccessRate != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestRollingWindowSuccessRate(t *testing.T) {
	w := NewRollingWindow(time.Minute, 8)
	w.RecordSuccess(10 * time.Millisecond)
	w.RecordSuccess(20 * time.Millisecond)
	w.RecordFailure()
	w.RecordFailure()

	snap := w.Snapshot()
	if snap.SampleCount != 4 {
		t.Fatalf("expected 4 samples, got %d", snap.SampleCount)
	}
	if snap.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", snap.SuccessRate)
	}
	if snap.AvgLatency != 15*time.Millisecond {
		t.Fatalf("expected avg latency 15ms, got %v", snap.AvgLatency)
	}
}

func TestRollingWindowExpiresOldSamples(t *testing.T) {
	w := NewRollingWindow(10*time.Millisecond, 8)
	w.RecordSuccess(time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	w.RecordFailure()

	snap := w.Snapshot()
	if snap.SampleCount != 1 {
		t.Fatalf("expected only the fresh sample to count, got %d", snap.SampleCount)
	}
	if snap.SuccessRate != 0 {
		t.Fatalf("expected success rate 0 after expiry of the only success, got %f", snap.SuccessRate)
	}
}

func TestRollingWindowRejectsNegativeLatency(t *testing.T) {
	w := NewRollingWindow(time.Minute, 4)
	w.RecordSuccess(-5 * time.Millisecond)
	if snap := w.Snapshot(); snap.SampleCount != 0 {
		t.Fatalf("expected negative-latency sample to be dropped, got %+v", snap)
	}
}

func TestRollingWindowWrapsRingBuffer(t *testing.T) {
	w := NewRollingWindow(time.Minute, 2)
	w.RecordSuccess(time.Millisecond)
	w.RecordSuccess(time.Millisecond)
	w.RecordFailure() // overwrites the oldest slot

	snap := w.Snapshot()
	if snap.SampleCount != 2 {
		t.Fatalf("expected capacity-bounded count of 2, got %d", snap.SampleCount)
	}
}
