// Package trigger implements the Trigger Engine and its rules (spec
// §4.5): a pure, ordered evaluation over recent log and metric
// snapshots that decides whether an analysis should run.
package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/baikal/sentinel/internal/model"
)

// Rule is a polymorphic trigger capability: a name, the severity it
// expects to produce, and a pure evaluate function.
type Rule interface {
	Name() string
	ExpectedSeverity() model.Severity
	Evaluate(logs []model.LogEvent, metrics []model.MetricEvent) (reason string, fired bool)
}

// Engine holds an ordered list of rules and evaluates them in
// registration order, stopping at the first that fires.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over the given rules, evaluated in the
// order given.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate runs every rule in order against the given snapshots and
// returns the first fired Trigger Context. now is the time recorded
// as TriggerTime.
func (e *Engine) Evaluate(logs []model.LogEvent, metrics []model.MetricEvent, now time.Time) (model.TriggerContext, bool) {
	for _, r := range e.rules {
		if reason, fired := r.Evaluate(logs, metrics); fired {
			return model.TriggerContext{
				TriggerTime:      now,
				RuleName:         r.Name(),
				ExpectedSeverity: r.ExpectedSeverity(),
				Reason:           reason,
				RelevantLogs:     logs,
				RelevantMetrics:  metrics,
			}, true
		}
	}
	return model.TriggerContext{}, false
}

// ErrorFrequencyRule fires when more than threshold Error/Fault log
// events fall within window.
type ErrorFrequencyRule struct {
	Threshold int
	Window    time.Duration
	Severity  model.Severity
}

func (r ErrorFrequencyRule) Name() string                    { return "error-frequency" }
func (r ErrorFrequencyRule) ExpectedSeverity() model.Severity { return r.Severity }

func (r ErrorFrequencyRule) Evaluate(logs []model.LogEvent, _ []model.MetricEvent) (string, bool) {
	if len(logs) == 0 {
		return "", false
	}
	cutoff := logs[len(logs)-1].Timestamp.Add(-r.Window)
	count := 0
	for _, e := range logs {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if e.MessageType.IsErrorClass() {
			count++
		}
	}
	if count > r.Threshold {
		return errorFrequencyReason(count, r.Threshold, r.Window), true
	}
	return "", false
}

func errorFrequencyReason(count, threshold int, window time.Duration) string {
	return fmt.Sprintf("observed %d error/fault events in the last %s, exceeding threshold %d", count, window, threshold)
}

// MemoryPressureRule fires when any metric event in the window has
// memory_pressure ≥ min_level.
type MemoryPressureRule struct {
	MinLevel model.MemoryPressure
	Severity model.Severity
}

func (r MemoryPressureRule) Name() string                    { return "memory-pressure" }
func (r MemoryPressureRule) ExpectedSeverity() model.Severity { return r.Severity }

func (r MemoryPressureRule) Evaluate(_ []model.LogEvent, metrics []model.MetricEvent) (string, bool) {
	for _, m := range metrics {
		if m.MemoryPressure >= r.MinLevel {
			return "memory pressure reached " + m.MemoryPressure.String(), true
		}
	}
	return "", false
}

// DefaultCrashKeywords is the default keyword set for the
// Crash-Detection Rule (§4.5).
var DefaultCrashKeywords = []string{
	"crash", "crashed", "segmentation fault", "segfault", "kernel panic",
	"panic", "abort", "terminated unexpectedly", "sigkill", "sigsegv",
	"sigabrt", "exception", "fatal error",
}

// CrashDetectionRule fires when any Error/Fault log message contains
// (case-folded) a keyword from Keywords.
type CrashDetectionRule struct {
	Keywords []string
	Severity model.Severity
}

// NewCrashDetectionRule creates a rule with the default keyword set
// and Critical severity unless overridden.
func NewCrashDetectionRule() CrashDetectionRule {
	return CrashDetectionRule{Keywords: DefaultCrashKeywords, Severity: model.SeverityCritical}
}

func (r CrashDetectionRule) Name() string                    { return "crash-detection" }
func (r CrashDetectionRule) ExpectedSeverity() model.Severity { return r.Severity }

func (r CrashDetectionRule) Evaluate(logs []model.LogEvent, _ []model.MetricEvent) (string, bool) {
	for _, e := range logs {
		if !e.MessageType.IsErrorClass() {
			continue
		}
		folded := strings.ToLower(e.Message)
		for _, kw := range r.Keywords {
			if strings.Contains(folded, strings.ToLower(kw)) {
				return "message matched crash keyword \"" + kw + "\"", true
			}
		}
	}
	return "", false
}

// ResourceSpikeRule fires on an upward excursion in CPU or GPU power
// relative to the lowest value seen so far in the window (running
// minimum algorithm, §4.5).
type ResourceSpikeRule struct {
	CPUSpikeThresholdMW float64
	GPUSpikeThresholdMW float64
	ComparisonWindow    time.Duration
	Severity            model.Severity
}

func (r ResourceSpikeRule) Name() string                    { return "resource-spike" }
func (r ResourceSpikeRule) ExpectedSeverity() model.Severity { return r.Severity }

func (r ResourceSpikeRule) Evaluate(_ []model.LogEvent, metrics []model.MetricEvent) (string, bool) {
	if len(metrics) == 0 {
		return "", false
	}
	cutoff := metrics[len(metrics)-1].Timestamp.Add(-r.ComparisonWindow)
	start := 0
	for start < len(metrics) && metrics[start].Timestamp.Before(cutoff) {
		start++
	}
	window := metrics[start:]
	if len(window) == 0 {
		return "", false
	}

	minCPU := window[0].CPUPowerMW
	maxCPUSpike := 0.0
	var minGPU *float64
	maxGPUSpike := 0.0
	if window[0].GPUPowerMW != nil {
		v := *window[0].GPUPowerMW
		minGPU = &v
	}

	for _, e := range window[1:] {
		cpuSpike := e.CPUPowerMW - minCPU
		if cpuSpike > maxCPUSpike {
			maxCPUSpike = cpuSpike
		}
		if e.CPUPowerMW < minCPU {
			minCPU = e.CPUPowerMW
		}

		if e.GPUPowerMW != nil && minGPU != nil {
			gpuSpike := *e.GPUPowerMW - *minGPU
			if gpuSpike > maxGPUSpike {
				maxGPUSpike = gpuSpike
			}
			if *e.GPUPowerMW < *minGPU {
				*minGPU = *e.GPUPowerMW
			}
		} else if e.GPUPowerMW != nil && minGPU == nil {
			v := *e.GPUPowerMW
			minGPU = &v
		}
	}

	if maxCPUSpike >= r.CPUSpikeThresholdMW {
		return fmt.Sprintf("cpu power spiked %.1fmW above running minimum", maxCPUSpike), true
	}
	if maxGPUSpike >= r.GPUSpikeThresholdMW {
		return fmt.Sprintf("gpu power spiked %.1fmW above running minimum", maxGPUSpike), true
	}
	return "", false
}
