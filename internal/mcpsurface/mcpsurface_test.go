package mcpsurface

import (
	"testing"

	"github.com/baikal/sentinel/internal/model"
)

func TestInsightHistoryDropsOldestOnOverflow(t *testing.T) {
	h := NewInsightHistory(2)
	h.Record(model.Insight{Summary: "a"})
	h.Record(model.Insight{Summary: "b"})
	h.Record(model.Insight{Summary: "c"})

	recent := h.Recent()
	if len(recent) != 2 || recent[0].Summary != "b" || recent[1].Summary != "c" {
		t.Fatalf("Recent() = %+v, want [b c]", recent)
	}
}

func TestInsightHistorySnapshotIsACopy(t *testing.T) {
	h := NewInsightHistory(10)
	h.Record(model.Insight{Summary: "original"})

	snap := h.Recent()
	snap[0].Summary = "mutated"

	again := h.Recent()
	if again[0].Summary != "original" {
		t.Fatal("internal state mutated via returned snapshot")
	}
}
