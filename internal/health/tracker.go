package health

import (
	"sync"
	"time"
)

// Thresholds configures the state machine (spec §4.2 table), defaults
// matching spec.md exactly.
type Thresholds struct {
	MaxConsecutiveFailures int
	UnhealthyRate          float64 // DEGRADED->UNHEALTHY shares MaxConsecutiveFailures; this is HEALTHY->DEGRADED
	RecoveryRate           float64 // DEGRADED->HEALTHY
}

// DefaultThresholds mirrors spec §4.2 defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxConsecutiveFailures: 3,
		UnhealthyRate:          0.5,
		RecoveryRate:           0.8,
	}
}

// nodeRecord is the mutable per-node state. One lock per node (design note
// §9) rather than a single global lock, since the registry's contention is
// per-request not cluster-wide.
type nodeRecord struct {
	mu                 sync.Mutex
	state              State
	window             *RollingWindow
	consecutiveFails   int
	consecutiveSuccess int
	backoff            backoffState
	lastError          error
}

// Tracker is the per-node health state machine over RollingWindow metrics
// (spec §4.2).
type Tracker struct {
	thresholds Thresholds
	events     Events

	mu    sync.RWMutex
	nodes map[string]*nodeRecord
}

// NewTracker creates a tracker. events may be nil (NoopEvents is used).
func NewTracker(thresholds Thresholds, events Events) *Tracker {
	if events == nil {
		events = NoopEvents{}
	}
	return &Tracker{
		thresholds: thresholds,
		events:     events,
		nodes:      make(map[string]*nodeRecord),
	}
}

// Register adds a node in INITIALIZING state if not already tracked.
func (t *Tracker) Register(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[nodeID]; ok {
		return
	}
	t.nodes[nodeID] = &nodeRecord{
		state:   StateInitializing,
		window:  NewRollingWindow(DefaultWindow, 512),
		backoff: newBackoffState(),
	}
}

func (t *Tracker) record(nodeID string) *nodeRecord {
	t.mu.RLock()
	rec, ok := t.nodes[nodeID]
	t.mu.RUnlock()
	if ok {
		return rec
	}
	t.Register(nodeID)
	t.mu.RLock()
	rec = t.nodes[nodeID]
	t.mu.RUnlock()
	return rec
}

// State returns the current state of a node (StateInitializing if unknown).
func (t *Tracker) State(nodeID string) State {
	t.mu.RLock()
	rec, ok := t.nodes[nodeID]
	t.mu.RUnlock()
	if !ok {
		return StateInitializing
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state
}

// Eligible reports whether nodeID is currently routable.
func (t *Tracker) Eligible(nodeID string) bool {
	return t.State(nodeID).Eligible()
}

// Snapshot returns the node's rolling window snapshot.
func (t *Tracker) Snapshot(nodeID string) Snapshot {
	rec := t.record(nodeID)
	return rec.window.Snapshot()
}

// EligibleNodes returns every tracked node id currently in HEALTHY or
// DEGRADED state.
func (t *Tracker) EligibleNodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for id, rec := range t.nodes {
		rec.mu.Lock()
		ok := rec.state.Eligible()
		rec.mu.Unlock()
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// IsHealthy/IsDegraded are small readers used by the router tiering logic.
func (t *Tracker) IsHealthy(nodeID string) bool  { return t.State(nodeID) == StateHealthy }
func (t *Tracker) IsDegraded(nodeID string) bool { return t.State(nodeID) == StateDegraded }

// RecordSuccess applies a successful observation and runs the transition
// table (spec §4.2).
func (t *Tracker) RecordSuccess(nodeID string, latency time.Duration) {
	rec := t.record(nodeID)
	rec.mu.Lock()
	rec.window.RecordSuccess(latency)
	rec.consecutiveFails = 0
	rec.consecutiveSuccess++
	rec.backoff.onSuccess()
	rec.lastError = nil

	prev := rec.state
	next := prev
	reason := "success"
	switch prev {
	case StateInitializing:
		next = StateHealthy
		reason = "first success"
	case StateUnhealthy:
		next = StateHealthy
		reason = "recovery attempt succeeded"
	case StateDegraded:
		if rec.window.Snapshot().SuccessRate >= t.thresholds.RecoveryRate {
			next = StateHealthy
			reason = "success rate recovered"
		}
	}
	rec.state = next
	rec.mu.Unlock()

	if next != prev {
		t.events.OnStatusChange(TransitionEvent{NodeID: nodeID, Previous: prev, Next: next, Reason: reason})
	}
}

// RecordFailure applies a failed observation and runs the transition table.
func (t *Tracker) RecordFailure(nodeID string, cause error) {
	rec := t.record(nodeID)
	now := time.Now()
	rec.mu.Lock()
	rec.window.RecordFailure()
	rec.consecutiveSuccess = 0
	rec.consecutiveFails++
	rec.lastError = cause

	prev := rec.state
	next := prev
	reason := "failure"
	switch prev {
	case StateHealthy:
		if rec.consecutiveFails >= t.thresholds.MaxConsecutiveFailures {
			next = StateUnhealthy
			reason = "consecutive failures exceeded"
		} else if rec.window.Snapshot().SuccessRate < t.thresholds.UnhealthyRate {
			next = StateDegraded
			reason = "success rate below threshold"
		}
	case StateDegraded:
		if rec.consecutiveFails >= t.thresholds.MaxConsecutiveFailures {
			next = StateUnhealthy
			reason = "consecutive failures exceeded"
		}
	case StateInitializing:
		// stays INITIALIZING until a first success; failures don't demote it further.
	}
	rec.state = next

	// Backoff only advances once the circuit is open: the failure that
	// trips UNHEALTHY sets the initial 1s delay, and only failures while
	// already UNHEALTHY double it further (spec §8 scenario 2).
	switch {
	case next == StateUnhealthy && prev != StateUnhealthy:
		rec.backoff.onCircuitOpen(now)
	case next == StateUnhealthy && prev == StateUnhealthy:
		rec.backoff.onFailure(now)
	}
	rec.mu.Unlock()

	if next != prev {
		t.events.OnStatusChange(TransitionEvent{NodeID: nodeID, Previous: prev, Next: next, Reason: reason})
	}
}

// MarkOffline forces a node to OFFLINE regardless of current state.
func (t *Tracker) MarkOffline(nodeID, reason string) {
	rec := t.record(nodeID)
	rec.mu.Lock()
	prev := rec.state
	rec.state = StateOffline
	rec.mu.Unlock()
	if prev != StateOffline {
		t.events.OnStatusChange(TransitionEvent{NodeID: nodeID, Previous: prev, Next: StateOffline, Reason: reason})
	}
}

// ShouldAttemptRecovery returns true only when state == UNHEALTHY and the
// node's backoff delay has elapsed since its last failure (spec §4.2).
func (t *Tracker) ShouldAttemptRecovery(nodeID string) bool {
	rec := t.record(nodeID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != StateUnhealthy {
		return false
	}
	return rec.backoff.shouldAttemptRecovery(time.Now())
}

// LastError returns the most recently recorded failure cause, if any.
func (t *Tracker) LastError(nodeID string) error {
	rec := t.record(nodeID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.lastError
}
