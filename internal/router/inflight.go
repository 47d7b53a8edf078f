package router

import "sync"

// inflightCounters tracks the number of dispatched-but-not-yet-terminated
// requests per node (spec glossary "In-flight"): one counter per node, all
// held in a single map guarded by one mutex that is taken only for the
// increment, decrement, or read itself.
type inflightCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func newInflightCounters() *inflightCounters {
	return &inflightCounters{counts: make(map[string]int)}
}

func (c *inflightCounters) inc(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[nodeID]++
}

func (c *inflightCounters) dec(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[nodeID] > 0 {
		c.counts[nodeID]--
	}
}

func (c *inflightCounters) get(nodeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[nodeID]
}
