// Package aggregator implements the Event Aggregator (spec §4.4): two
// bounded rolling FIFO buffers, one for log events and one for metric
// events, with capacity-then-age eviction and window queries.
//
// Not concurrency-safe. Concurrency is mediated by the evaluator
// goroutine in internal/orchestrator; a single writer appends, a
// single reader queries.
package aggregator

import (
	"time"

	"github.com/baikal/sentinel/internal/model"
)

// Aggregator holds the rolling log and metric buffers.
type Aggregator struct {
	logMaxSize int
	logMaxAge  time.Duration
	logs       []model.LogEvent

	metricMaxSize int
	metricMaxAge  time.Duration
	metrics       []model.MetricEvent

	now func() time.Time
}

// New creates an Aggregator with independent bounds per buffer.
func New(logMaxSize int, logMaxAge time.Duration, metricMaxSize int, metricMaxAge time.Duration) *Aggregator {
	return &Aggregator{
		logMaxSize:    logMaxSize,
		logMaxAge:     logMaxAge,
		metricMaxSize: metricMaxSize,
		metricMaxAge:  metricMaxAge,
		now:           time.Now,
	}
}

// AddLog appends a log event, then enforces bounds. Never fails.
func (a *Aggregator) AddLog(e model.LogEvent) {
	a.logs = append(a.logs, e)
	a.pruneLogs()
}

// AddMetric appends a metric event, then enforces bounds. Never fails.
func (a *Aggregator) AddMetric(e model.MetricEvent) {
	a.metrics = append(a.metrics, e)
	a.pruneMetrics()
}

// RecentLogs returns an ordered snapshot of log events with
// timestamp ≥ now − window. The slice is a fresh copy; callers may
// not observe later mutation.
func (a *Aggregator) RecentLogs(window time.Duration) []model.LogEvent {
	cutoff := a.now().Add(-window)
	start := 0
	for start < len(a.logs) && a.logs[start].Timestamp.Before(cutoff) {
		start++
	}
	out := make([]model.LogEvent, len(a.logs)-start)
	copy(out, a.logs[start:])
	return out
}

// RecentMetrics is analogous to RecentLogs for the metric buffer.
func (a *Aggregator) RecentMetrics(window time.Duration) []model.MetricEvent {
	cutoff := a.now().Add(-window)
	start := 0
	for start < len(a.metrics) && a.metrics[start].Timestamp.Before(cutoff) {
		start++
	}
	out := make([]model.MetricEvent, len(a.metrics)-start)
	copy(out, a.metrics[start:])
	return out
}

// Prune enforces bounds explicitly, exposed for testability.
func (a *Aggregator) Prune() {
	a.pruneLogs()
	a.pruneMetrics()
}

// pruneLogs enforces capacity first, then age (§4.4: "capacity is
// enforced first, guarantees termination when clock is stuck").
func (a *Aggregator) pruneLogs() {
	if over := len(a.logs) - a.logMaxSize; over > 0 {
		a.logs = a.logs[over:]
	}
	cutoff := a.now().Add(-a.logMaxAge)
	start := 0
	for start < len(a.logs) && a.logs[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		a.logs = a.logs[start:]
	}
}

func (a *Aggregator) pruneMetrics() {
	if over := len(a.metrics) - a.metricMaxSize; over > 0 {
		a.metrics = a.metrics[over:]
	}
	cutoff := a.now().Add(-a.metricMaxAge)
	start := 0
	for start < len(a.metrics) && a.metrics[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		a.metrics = a.metrics[start:]
	}
}
