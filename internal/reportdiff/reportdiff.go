// Package reportdiff compares two opt-in JSONL insight-log exports
// (one Insight per line) and reports what changed between them. The
// export itself is produced outside the core pipeline (an operator
// redirecting captured insights to a file); this package never reads
// or writes sentinel's own runtime state.
package reportdiff

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/baikal/sentinel/internal/model"
)

// Result summarizes the difference between two insight-log exports.
type Result struct {
	OnlyInBefore []model.Insight
	OnlyInAfter  []model.Insight
	SeverityRose []SeverityChange
}

// SeverityChange pairs an insight present in both exports (matched by
// summary text) whose severity increased from before to after.
type SeverityChange struct {
	Summary string
	Before  model.Severity
	After   model.Severity
}

// Load parses a JSONL insight export, one Insight object per line.
// Blank lines are skipped; malformed lines are reported as an error
// naming the offending line number.
func Load(r io.Reader) ([]model.Insight, error) {
	var out []model.Insight
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ins model.Insight
		if err := json.Unmarshal([]byte(line), &ins); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, ins)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Diff compares two insight sets, matching entries by summary text.
func Diff(before, after []model.Insight) Result {
	beforeBySummary := make(map[string]model.Insight, len(before))
	for _, ins := range before {
		beforeBySummary[ins.Summary] = ins
	}
	afterBySummary := make(map[string]model.Insight, len(after))
	for _, ins := range after {
		afterBySummary[ins.Summary] = ins
	}

	var result Result
	for _, ins := range before {
		if _, ok := afterBySummary[ins.Summary]; !ok {
			result.OnlyInBefore = append(result.OnlyInBefore, ins)
		}
	}
	for _, ins := range after {
		b, ok := beforeBySummary[ins.Summary]
		if !ok {
			result.OnlyInAfter = append(result.OnlyInAfter, ins)
			continue
		}
		if ins.Severity > b.Severity {
			result.SeverityRose = append(result.SeverityRose, SeverityChange{
				Summary: ins.Summary,
				Before:  b.Severity,
				After:   ins.Severity,
			})
		}
	}
	return result
}

// Format renders a Result for human consumption by the CLI.
func Format(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "only in before: %d\n", len(r.OnlyInBefore))
	for _, ins := range r.OnlyInBefore {
		fmt.Fprintf(&b, "  - %s\n", ins.Summary)
	}
	fmt.Fprintf(&b, "only in after: %d\n", len(r.OnlyInAfter))
	for _, ins := range r.OnlyInAfter {
		fmt.Fprintf(&b, "  + %s\n", ins.Summary)
	}
	fmt.Fprintf(&b, "severity increased: %d\n", len(r.SeverityRose))
	for _, c := range r.SeverityRose {
		fmt.Fprintf(&b, "  ~ %s: %s -> %s\n", c.Summary, c.Before, c.After)
	}
	return b.String()
}
