// Package metrics tracks run and tick counters for scroll sessions.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insajin/lazyscroll/internal/scroll"
)

// Metrics tracks scroll session metrics.
// All fields are thread-safe for concurrent access.
type Metrics struct {
	// Run metrics
	RunsStarted         atomic.Int64
	RunsCompleted       atomic.Int64
	RunsFailed          atomic.Int64
	RunsTimedOut        atomic.Int64
	RunsCanceled        atomic.Int64
	RunsPageUnavailable atomic.Int64

	// Tick metrics
	TicksTotal    atomic.Int64
	DistanceTotal atomic.Int64

	// Timing metrics
	startTime     time.Time
	lastTick      atomic.Value // time.Time
	avgTickNs     atomic.Int64
	tickLatencies atomic.Int64

	mu sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	Uptime              string    `json:"uptime"`
	RunsStarted         int64     `json:"runs_started"`
	RunsCompleted       int64     `json:"runs_completed"`
	RunsFailed          int64     `json:"runs_failed"`
	RunsTimedOut        int64     `json:"runs_timed_out"`
	RunsCanceled        int64     `json:"runs_canceled"`
	RunsPageUnavailable int64     `json:"runs_page_unavailable"`
	TicksTotal          int64     `json:"ticks_total"`
	DistanceTotal       int64     `json:"distance_total"`
	AvgTickMs           float64   `json:"avg_tick_ms"`
	LastTick            string    `json:"last_tick,omitempty"`
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordTick records one scroll step and the time it took, updating the
// running average.
func (m *Metrics) RecordTick(step int64, d time.Duration) {
	m.TicksTotal.Add(1)
	m.DistanceTotal.Add(step)
	m.lastTick.Store(time.Now())

	ns := d.Nanoseconds()
	count := m.tickLatencies.Add(1)

	// Running average: newAvg = oldAvg + (newValue - oldAvg) / count
	for {
		oldAvg := m.avgTickNs.Load()
		newAvg := oldAvg + (ns-oldAvg)/count
		if m.avgTickNs.CompareAndSwap(oldAvg, newAvg) {
			break
		}
		count = m.tickLatencies.Load()
		if count == 0 {
			count = 1
		}
	}
}

// RecordOutcome counts a finished run by its outcome. Every outcome other
// than completed also counts as failed.
func (m *Metrics) RecordOutcome(o scroll.Outcome) {
	switch o {
	case scroll.OutcomeCompleted:
		m.RunsCompleted.Add(1)
		return
	case scroll.OutcomeTimeout, scroll.OutcomeMaxTicks:
		m.RunsTimedOut.Add(1)
	case scroll.OutcomeCanceled:
		m.RunsCanceled.Add(1)
	case scroll.OutcomePageUnavailable:
		m.RunsPageUnavailable.Add(1)
	}
	m.RunsFailed.Add(1)
}

// Uptime returns the duration since the metrics instance was created or
// last reset.
func (m *Metrics) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// AvgTick returns the average recorded tick latency.
// Returns 0 if no tick has been recorded.
func (m *Metrics) AvgTick() time.Duration {
	return time.Duration(m.avgTickNs.Load())
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Timestamp:           time.Now(),
		Uptime:              m.Uptime().Round(time.Millisecond).String(),
		RunsStarted:         m.RunsStarted.Load(),
		RunsCompleted:       m.RunsCompleted.Load(),
		RunsFailed:          m.RunsFailed.Load(),
		RunsTimedOut:        m.RunsTimedOut.Load(),
		RunsCanceled:        m.RunsCanceled.Load(),
		RunsPageUnavailable: m.RunsPageUnavailable.Load(),
		TicksTotal:          m.TicksTotal.Load(),
		DistanceTotal:       m.DistanceTotal.Load(),
		AvgTickMs:           float64(m.avgTickNs.Load()) / float64(time.Millisecond),
	}

	if v := m.lastTick.Load(); v != nil {
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			snap.LastTick = t.Format(time.RFC3339)
		}
	}

	return snap
}

// ToJSON returns a JSON-encoded representation of the current metrics snapshot.
func (m *Metrics) ToJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// Reset resets all metric counters to zero and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.RunsStarted.Store(0)
	m.RunsCompleted.Store(0)
	m.RunsFailed.Store(0)
	m.RunsTimedOut.Store(0)
	m.RunsCanceled.Store(0)
	m.RunsPageUnavailable.Store(0)
	m.TicksTotal.Store(0)
	m.DistanceTotal.Store(0)
	m.avgTickNs.Store(0)
	m.tickLatencies.Store(0)
	m.lastTick.Store(time.Time{})

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
