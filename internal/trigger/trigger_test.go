package trigger

import (
	"strings"
	"testing"
	"time"

	"github.com/baikal/sentinel/internal/model"
)

func errLog(t time.Time) model.LogEvent {
	return model.LogEvent{Timestamp: t, MessageType: model.Error, Message: "boom"}
}

func metric(t time.Time, cpuMW float64) model.MetricEvent {
	return model.MetricEvent{Timestamp: t, CPUPowerMW: cpuMW}
}

// TestErrorFrequencyRuleScenarioA: ten Error events at t..t+9s, rule
// threshold=5 window=10s fires on the 6th event with exactly those six.
func TestErrorFrequencyRuleScenarioA(t *testing.T) {
	base := time.Now()
	rule := ErrorFrequencyRule{Threshold: 5, Window: 10 * time.Second, Severity: model.SeverityWarning}

	var logs []model.LogEvent
	for i := 0; i < 5; i++ {
		logs = append(logs, errLog(base.Add(time.Duration(i)*time.Second)))
		if _, fired := rule.Evaluate(logs, nil); fired {
			t.Fatalf("rule fired early at event %d", i+1)
		}
	}

	logs = append(logs, errLog(base.Add(5*time.Second)))
	reason, fired := rule.Evaluate(logs, nil)
	if !fired {
		t.Fatal("expected rule to fire on 6th event")
	}
	if reason == "" {
		t.Error("expected non-empty reason")
	}
	if len(logs) != 6 {
		t.Errorf("relevant logs len = %d, want 6", len(logs))
	}
}

// TestResourceSpikeRuleScenarioB: power series 2000,2100,1900,5200,1950
// with threshold 1000 fires with max spike 3300.
func TestResourceSpikeRuleScenarioB(t *testing.T) {
	base := time.Now()
	series := []float64{2000, 2100, 1900, 5200, 1950}
	var metrics []model.MetricEvent
	for i, v := range series {
		metrics = append(metrics, metric(base.Add(time.Duration(i)*time.Second), v))
	}

	rule := ResourceSpikeRule{CPUSpikeThresholdMW: 1000, ComparisonWindow: 30 * time.Second, Severity: model.SeverityWarning}
	reason, fired := rule.Evaluate(nil, metrics)
	if !fired {
		t.Fatal("expected resource spike rule to fire")
	}
	if reason == "" {
		t.Error("expected non-empty reason")
	}
	if !strings.Contains(reason, "3300.0") {
		t.Errorf("reason = %q, want it to report a 3300.0mW spike", reason)
	}
}

// TestResourceSpikeRuleScenarioC: monotonically decreasing series never fires.
func TestResourceSpikeRuleScenarioC(t *testing.T) {
	base := time.Now()
	series := []float64{5000, 4000, 3000, 2000}
	var metrics []model.MetricEvent
	for i, v := range series {
		metrics = append(metrics, metric(base.Add(time.Duration(i)*time.Second), v))
	}

	rule := ResourceSpikeRule{CPUSpikeThresholdMW: 1000, ComparisonWindow: 30 * time.Second, Severity: model.SeverityWarning}
	if _, fired := rule.Evaluate(nil, metrics); fired {
		t.Fatal("expected rule not to fire on monotonic decrease")
	}
}

// TestResourceSpikeRuleTransientDetection is testable property #8: a
// sequence [a, a+Δ, a] with Δ ≥ threshold fires.
func TestResourceSpikeRuleTransientDetection(t *testing.T) {
	base := time.Now()
	metrics := []model.MetricEvent{
		metric(base, 1000),
		metric(base.Add(time.Second), 2500),
		metric(base.Add(2*time.Second), 1000),
	}
	rule := ResourceSpikeRule{CPUSpikeThresholdMW: 1500, ComparisonWindow: 30 * time.Second, Severity: model.SeverityWarning}
	if _, fired := rule.Evaluate(nil, metrics); !fired {
		t.Fatal("expected transient spike to be detected")
	}
}

// TestResourceSpikeRuleMonotonicNonIncreasingNeverFires is testable
// property #7, generalized across a few non-increasing shapes.
func TestResourceSpikeRuleMonotonicNonIncreasingNeverFires(t *testing.T) {
	base := time.Now()
	cases := [][]float64{
		{100, 100, 100},
		{500, 300, 300, 100},
		{1},
	}
	rule := ResourceSpikeRule{CPUSpikeThresholdMW: 1, ComparisonWindow: time.Hour, Severity: model.SeverityWarning}
	for _, series := range cases {
		var metrics []model.MetricEvent
		for i, v := range series {
			metrics = append(metrics, metric(base.Add(time.Duration(i)*time.Second), v))
		}
		if _, fired := rule.Evaluate(nil, metrics); fired {
			t.Errorf("rule fired on non-increasing series %v", series)
		}
	}
}

func TestCrashDetectionRuleDefaultKeywords(t *testing.T) {
	rule := NewCrashDetectionRule()
	logs := []model.LogEvent{
		{MessageType: model.Error, Message: "process exited: SEGMENTATION FAULT at 0x0"},
	}
	reason, fired := rule.Evaluate(logs, nil)
	if !fired {
		t.Fatal("expected crash keyword to be matched case-insensitively")
	}
	if reason == "" {
		t.Error("expected non-empty reason")
	}
}

func TestCrashDetectionRuleIgnoresNonErrorClassMessages(t *testing.T) {
	rule := NewCrashDetectionRule()
	logs := []model.LogEvent{
		{MessageType: model.Info, Message: "simulated crash for testing"},
	}
	if _, fired := rule.Evaluate(logs, nil); fired {
		t.Fatal("expected Info-type message to be ignored regardless of content")
	}
}

func TestMemoryPressureRuleTotalOrder(t *testing.T) {
	rule := MemoryPressureRule{MinLevel: model.MemoryWarning, Severity: model.SeverityWarning}
	metrics := []model.MetricEvent{{MemoryPressure: model.MemoryCritical}}
	if _, fired := rule.Evaluate(nil, metrics); !fired {
		t.Fatal("expected Critical >= Warning to fire")
	}

	metrics = []model.MetricEvent{{MemoryPressure: model.MemoryNormal}}
	if _, fired := rule.Evaluate(nil, metrics); fired {
		t.Fatal("expected Normal < Warning not to fire")
	}
}

// TestEngineEvaluatesInRegistrationOrder is testable property #6
// (rule determinism) combined with first-fire-wins ordering.
func TestEngineEvaluatesInRegistrationOrder(t *testing.T) {
	always := stubRule{name: "always", fires: true}
	never := stubRule{name: "never", fires: false}

	engine := NewEngine(never, always)
	logs := []model.LogEvent{errLog(time.Now())}

	ctx1, fired1 := engine.Evaluate(logs, nil, time.Now())
	ctx2, fired2 := engine.Evaluate(logs, nil, time.Now())
	if !fired1 || !fired2 {
		t.Fatal("expected engine to fire")
	}
	if ctx1.RuleName != "always" || ctx2.RuleName != "always" {
		t.Errorf("expected deterministic winner 'always', got %q then %q", ctx1.RuleName, ctx2.RuleName)
	}
}

type stubRule struct {
	name  string
	fires bool
}

func (s stubRule) Name() string                    { return s.name }
func (s stubRule) ExpectedSeverity() model.Severity { return model.SeverityInfo }
func (s stubRule) Evaluate([]model.LogEvent, []model.MetricEvent) (string, bool) {
	if s.fires {
		return "stub fired", true
	}
	return "", false
}
