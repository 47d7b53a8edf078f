package health

// Events is the callback interface implemented by a central event bus
// (design note §9: "model cross-component callbacks as one explicit Events
// interface"). Components here only know this interface, never a concrete
// router/cache type, which breaks the cyclic module graph the teacher's
// source invites between proxy/router/cache-like pieces.
//
// Implementations must never let a panic escape; Dispatch (see
// internal/events) wraps every call in a recover().
type Events interface {
	OnStatusChange(TransitionEvent)
	OnHealthCheck(nodeID string, success bool, latencyMs int64, err error)
}

// NoopEvents implements Events with no-ops, used when the caller supplies
// no hooks.
type NoopEvents struct{}

func (NoopEvents) OnStatusChange(TransitionEvent)                                 {}
func (NoopEvents) OnHealthCheck(nodeID string, success bool, latencyMs int64, err error) {}
