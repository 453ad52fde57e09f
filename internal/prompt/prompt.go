// Package prompt implements the Prompt Formatter and Response
// Extractor (spec §4.6): a deterministic projection of a Trigger
// Context to text, and a tolerant extractor that recovers a
// structured Insight from a backend's raw response.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/baikal/sentinel/internal/model"
)

// Render projects a Trigger Context to the fixed textual layout sent
// to the LLM backend. It is a total function of ctx: no wall-clock or
// random inputs.
func Render(ctx model.TriggerContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a diagnostic assistant analyzing host telemetry.\n")
	fmt.Fprintf(&b, "Rule %q fired with expected severity %s.\n", ctx.RuleName, ctx.ExpectedSeverity)
	fmt.Fprintf(&b, "Reason: %s\n\n", ctx.Reason)

	fmt.Fprintf(&b, "Metrics summary:\n")
	if len(ctx.RelevantMetrics) == 0 {
		fmt.Fprintf(&b, "  (no metric samples in window)\n")
	} else {
		var sumCPU, peakCPU float64
		for i, m := range ctx.RelevantMetrics {
			sumCPU += m.CPUPowerMW
			if i == 0 || m.CPUPowerMW > peakCPU {
				peakCPU = m.CPUPowerMW
			}
		}
		avgCPU := sumCPU / float64(len(ctx.RelevantMetrics))
		fmt.Fprintf(&b, "  cpu_power_mw: avg=%.1f peak=%.1f\n", avgCPU, peakCPU)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Recent error-class logs:\n")
	wroteLog := false
	for _, e := range ctx.RelevantLogs {
		if !e.MessageType.IsErrorClass() {
			continue
		}
		fmt.Fprintf(&b, "  [%s] %s/%s: %s\n", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Subsystem, e.Category, e.Message)
		wroteLog = true
	}
	if !wroteLog {
		fmt.Fprintf(&b, "  (none)\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Recent metric samples:\n")
	if len(ctx.RelevantMetrics) == 0 {
		fmt.Fprintf(&b, "  (none)\n")
	} else {
		for _, m := range ctx.RelevantMetrics {
			fmt.Fprintf(&b, "  [%s] cpu_power_mw=%.1f memory_pressure=%s\n", m.Timestamp.Format("2006-01-02T15:04:05Z07:00"), m.CPUPowerMW, m.MemoryPressure)
		}
	}
	b.WriteString("\n")

	b.WriteString("Respond with a single JSON object matching exactly this schema:\n")
	b.WriteString(`{"summary": string, "root_cause": string|null, "recommendations": [string], "severity": "info"|"warning"|"critical"}`)
	b.WriteString("\n")

	return b.String()
}

// extractedInsight mirrors the strict response schema (§4.6).
type extractedInsight struct {
	Summary         string   `json:"summary"`
	RootCause       *string  `json:"root_cause"`
	Recommendations []string `json:"recommendations"`
	Severity        string   `json:"severity"`
}

// ExtractError reports that none of the three extraction stages
// recovered a valid object.
type ExtractError struct {
	Raw string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("could not extract a structured response from backend output (%d bytes)", len(e.Raw))
}

// Extract recovers an Insight from raw backend text, trying in order:
// strict JSON parse, the first fenced code block, and a balanced
// brace scan (§4.6).
func Extract(raw string) (model.Insight, error) {
	if ins, ok := tryParse(raw); ok {
		return ins, nil
	}
	if body, ok := firstFencedBlock(raw); ok {
		if ins, ok := tryParse(body); ok {
			return ins, nil
		}
	}
	if body, ok := firstBalancedBraces(raw); ok {
		if ins, ok := tryParse(body); ok {
			return ins, nil
		}
	}
	return model.Insight{}, &ExtractError{Raw: raw}
}

func tryParse(s string) (model.Insight, bool) {
	var rec extractedInsight
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &rec); err != nil {
		return model.Insight{}, false
	}
	if strings.TrimSpace(rec.Summary) == "" {
		return model.Insight{}, false
	}

	sev, ok := model.ParseSeverity(rec.Severity)
	if !ok {
		sev = model.SeverityInfo
	}

	return model.Insight{
		Summary:         rec.Summary,
		RootCause:       rec.RootCause,
		Recommendations: rec.Recommendations,
		Severity:        sev,
	}, true
}

// firstFencedBlock returns the contents of the first ``` fenced code
// region, stripping an optional language tag on the opening fence.
func firstFencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}
	afterOpen := start + 3
	nl := strings.IndexByte(s[afterOpen:], '\n')
	if nl == -1 {
		return "", false
	}
	bodyStart := afterOpen + nl + 1
	end := strings.Index(s[bodyStart:], "```")
	if end == -1 {
		return "", false
	}
	return s[bodyStart : bodyStart+end], true
}

// firstBalancedBraces locates the first '{' and its matching '}',
// accounting for nested braces and braces inside string literals.
func firstBalancedBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
