package health

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rpay/cluster-gateway/internal/cluster"
)

// MonitorConfig configures probe cadence and timeouts (spec §4.3, §5).
type MonitorConfig struct {
	Interval    time.Duration
	ProbeTimeout time.Duration
}

// DefaultMonitorConfig mirrors spec defaults: probe timeout 5s.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{Interval: 10 * time.Second, ProbeTimeout: 5 * time.Second}
}

// Monitor is the per-process cluster health monitor (spec §4.3). It issues
// an initial probe for every node on Start, then probes on a ticker,
// self-coalescing so an overlapping tick never starts a second cycle —
// grounded on the teacher's internal/pool.ModelLimiter background reset
// goroutines (one ticker per concern, guarded by a mutex) and its
// internal/proxy.RateLimiter window-coalescing idiom.
type Monitor struct {
	tracker *Tracker
	cfg     MonitorConfig
	client  *http.Client
	logger  *log.Logger

	mu        sync.Mutex
	running   bool
	cycleBusy bool
	cancel    context.CancelFunc
	done      chan struct{}

	// probeLimiter paces individual probe dispatches within a cycle so a
	// cluster of many nodes doesn't open them all in the same instant;
	// it's sized against the node count on Start, so a fresh cycle still
	// completes within roughly one Interval even when paced.
	probeLimiter *rate.Limiter
}

// NewMonitor creates a monitor bound to tracker. logger may be nil.
func NewMonitor(tracker *Tracker, cfg MonitorConfig, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(log.Writer(), "[health] ", log.LstdFlags)
	}
	return &Monitor{
		tracker: tracker,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.ProbeTimeout},
		logger:  logger,
	}
}

// IsRunning reports whether the monitor has an active probe loop.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start registers every node, probes them once, then begins a ticker loop.
// At most one monitor runs per process; calling Start twice is a no-op.
func (m *Monitor) Start(nodes []cluster.Node) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	// Spread a cycle's probes evenly across the interval rather than
	// opening len(nodes) connections in the same instant; burst of 1
	// keeps pacing strict even right after Start.
	nodeCount := len(nodes)
	if nodeCount == 0 {
		nodeCount = 1
	}
	m.probeLimiter = rate.NewLimiter(rate.Every(m.cfg.Interval/time.Duration(nodeCount)), 1)
	m.mu.Unlock()

	for _, n := range nodes {
		m.tracker.Register(n.ID)
	}

	m.runCycle(ctx, nodes)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				if m.cycleBusy {
					m.mu.Unlock()
					continue // coalesce: a cycle is still running
				}
				m.cycleBusy = true
				m.mu.Unlock()

				m.runCycle(ctx, nodes)

				m.mu.Lock()
				m.cycleBusy = false
				m.mu.Unlock()
			}
		}
	}()
}

// Stop cancels the timer and any in-flight probes. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) runCycle(ctx context.Context, nodes []cluster.Node) {
	var wg sync.WaitGroup
	for _, n := range nodes {
		n := n
		if m.tracker.State(n.ID) == StateUnhealthy && !m.tracker.ShouldAttemptRecovery(n.ID) {
			continue
		}
		if err := m.probeLimiter.Wait(ctx); err != nil {
			return // context cancelled (Stop called mid-cycle)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.probe(ctx, n)
		}()
	}
	wg.Wait()
}

func (m *Monitor) probe(ctx context.Context, n cluster.Node) {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, n.BaseURL+"/health", nil)
	if err != nil {
		m.tracker.RecordFailure(n.ID, err)
		m.safeCallback(n.ID, false, 0, err)
		return
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("health probe timeout: %w", err)
		}
		m.tracker.RecordFailure(n.ID, err)
		m.safeCallback(n.ID, false, latency.Milliseconds(), err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("health probe non-2xx status %d", resp.StatusCode)
		m.tracker.RecordFailure(n.ID, err)
		m.safeCallback(n.ID, false, latency.Milliseconds(), err)
		return
	}

	m.tracker.RecordSuccess(n.ID, latency)
	m.safeCallback(n.ID, true, latency.Milliseconds(), nil)
}

// safeCallback invokes the tracker's events.OnHealthCheck, swallowing any
// panic a caller-supplied handler raises (spec §4.3: "callback errors never
// propagate").
func (m *Monitor) safeCallback(nodeID string, success bool, latencyMs int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("ERROR [health] callback panic node=%s recovered=%v", nodeID, r)
		}
	}()
	m.tracker.events.OnHealthCheck(nodeID, success, latencyMs, err)
}

// RecordSuccess/RecordFailure let the router feed real-request outcomes
// into the same tracker the monitor uses (spec §4.3 manual recording).
func (m *Monitor) RecordSuccess(nodeID string, latency time.Duration) {
	m.tracker.RecordSuccess(nodeID, latency)
}

func (m *Monitor) RecordFailure(nodeID string, err error) {
	m.tracker.RecordFailure(nodeID, err)
}
