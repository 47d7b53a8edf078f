package health

import "time"

// Backoff constants (spec §3 BackoffState): initial 1s when the circuit
// opens, doubled on each further failure while it stays open, capped at 60s. Grounded on the teacher's hyperifyio-goagent-style
// exponential backoff (internal/oai/backoff.go) adapted from HTTP-retry
// jitter to a per-node circuit delay with no jitter (the spec's recovery
// check is a hard >= comparison, not a retry sleep).
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
)

// backoffState tracks the per-node circuit delay.
type backoffState struct {
	delay       time.Duration
	lastFailure time.Time
}

func newBackoffState() backoffState {
	return backoffState{delay: initialBackoff}
}

// onCircuitOpen stamps the failure that first trips the circuit (a
// transition into UNHEALTHY) and sets the delay to its initial value —
// spec §8 scenario 2: three consecutive pre-commit failures open the
// circuit with backoff = 1 s, not an already-doubled delay.
func (b *backoffState) onCircuitOpen(now time.Time) {
	b.lastFailure = now
	b.delay = initialBackoff
}

// onFailure doubles the delay (capped) and stamps the failure time. Only
// meaningful once the circuit is already open (state == UNHEALTHY); a
// failure that merely ramps a HEALTHY/DEGRADED node toward UNHEALTHY must
// not advance the backoff before the circuit actually opens.
func (b *backoffState) onFailure(now time.Time) {
	b.lastFailure = now
	b.delay *= 2
	if b.delay > maxBackoff {
		b.delay = maxBackoff
	}
}

// onSuccess resets the delay to its initial value.
func (b *backoffState) onSuccess() {
	b.delay = initialBackoff
}

// shouldAttemptRecovery reports whether enough time has elapsed since the
// last failure for a recovery probe to be worth attempting.
func (b *backoffState) shouldAttemptRecovery(now time.Time) bool {
	return now.Sub(b.lastFailure) >= b.delay
}
