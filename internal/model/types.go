// Package model defines the value types shared across sentinel's
// ingestion, trigger, and analysis pipeline.
package model

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MessageType classifies a Log Event. The zero value is Error, so a
// failed parse cannot be told apart by value; always check
// ParseMessageType's ok return before trusting a MessageType.
type MessageType int

const (
	Error MessageType = iota
	Fault
	Info
	Debug
)

func (m MessageType) String() string {
	switch m {
	case Error:
		return "Error"
	case Fault:
		return "Fault"
	case Info:
		return "Info"
	case Debug:
		return "Debug"
	default:
		return "Unknown"
	}
}

// ParseMessageType parses the case-insensitive wire representation
// ("Error", "Fault", "Info", "Debug") used by the log source.
func ParseMessageType(s string) (MessageType, bool) {
	switch strings.ToLower(s) {
	case "error":
		return Error, true
	case "fault":
		return Fault, true
	case "info":
		return Info, true
	case "debug":
		return Debug, true
	default:
		return 0, false
	}
}

// IsErrorClass reports whether the message type counts as an
// error-class event for the Error-Frequency and Crash-Detection rules.
func (m MessageType) IsErrorClass() bool {
	return m == Error || m == Fault
}

// Severity is ordered Info < Warning < Critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity matches a severity string case-insensitively. Unknown
// values coerce to SeverityInfo per §4.6; ok reports whether the input
// was recognized so callers can emit a diagnostic.
func ParseSeverity(s string) (sev Severity, ok bool) {
	switch strings.ToLower(s) {
	case "info":
		return SeverityInfo, true
	case "warning":
		return SeverityWarning, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityInfo, false
	}
}

// MemoryPressure is ordered Normal < Warning < Critical.
type MemoryPressure int

const (
	MemoryNormal MemoryPressure = iota
	MemoryWarning
	MemoryCritical
)

func (m MemoryPressure) String() string {
	switch m {
	case MemoryNormal:
		return "Normal"
	case MemoryWarning:
		return "Warning"
	case MemoryCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ParseMemoryPressure parses the case-insensitive wire label ("Normal",
// "Warning", "Critical").
func ParseMemoryPressure(s string) (MemoryPressure, bool) {
	switch strings.ToLower(s) {
	case "normal":
		return MemoryNormal, true
	case "warning":
		return MemoryWarning, true
	case "critical":
		return MemoryCritical, true
	default:
		return 0, false
	}
}

// UnmarshalYAML lets a MemoryPressure config field be written as its
// textual label ("Warning") rather than its underlying int value.
func (m *MemoryPressure) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, ok := ParseMemoryPressure(s)
	if !ok {
		return fmt.Errorf("unrecognized memory_pressure level %q", s)
	}
	*m = parsed
	return nil
}

// LogEvent is an immutable, normalized record derived from one line of
// the log source (§3, §6). Every field is present post-parse; Message
// may be empty but is never meaningless (parse failures are skipped
// upstream, never represented as a zero-value LogEvent).
type LogEvent struct {
	Timestamp   time.Time
	MessageType MessageType
	Subsystem   string
	Category    string
	Process     string
	ProcessID   uint32
	Message     string
}

// MetricEvent is an immutable snapshot of resource measurements (§3).
// GPU fields and CPUUsagePercent/MemoryUsedMB are optional: nil/zero
// denotes hardware or fallback-mode absence, never a parse error.
type MetricEvent struct {
	Timestamp       time.Time
	CPUPowerMW      float64
	CPUUsagePercent *float64
	GPUPowerMW      *float64
	GPUUsagePercent *float64
	MemoryPressure  MemoryPressure
	MemoryUsedMB    float64
	EnergyImpact    float64
}

// TriggerContext is produced by the Trigger Engine the moment a rule
// fires (§4.5). RelevantLogs/RelevantMetrics are owned snapshots: the
// Aggregator may keep mutating its buffers without affecting an
// in-flight analysis (§9, "Snapshots, not shared buffers").
type TriggerContext struct {
	TriggerTime      time.Time
	RuleName         string
	ExpectedSeverity Severity
	Reason           string
	RelevantLogs     []LogEvent
	RelevantMetrics  []MetricEvent

	// CorrelationID identifies one trigger-to-notification lifecycle
	// across logs, retries, and the eventual Insight. Assigned by the
	// orchestrator, never by the Trigger Engine itself, so Engine.Evaluate
	// stays a pure function of its inputs.
	CorrelationID string
}

// Insight is the structured result of a successful LLM backend analysis.
type Insight struct {
	AnalysisTime    time.Time
	Summary         string
	RootCause       *string
	Recommendations []string
	Severity        Severity

	// CorrelationID carries forward the TriggerContext.CorrelationID
	// that produced this Insight, including across a retry.
	CorrelationID string
}

// RetryEntry pairs a failed TriggerContext with its next permitted
// retry instant and attempt count (§3, §4.8). Confined to the
// analyzer's retry queue.
type RetryEntry struct {
	Context       TriggerContext
	AttemptCount  int
	NextRetryTime time.Time
}
