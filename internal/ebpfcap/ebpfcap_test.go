package ebpfcap

import (
	"strings"
	"testing"
)

func TestDetectNeverPanics(t *testing.T) {
	r := Detect()
	_ = r
}

func TestFormatIncludesKernelVersionLine(t *testing.T) {
	out := Format(Report{KernelVersion: "5.15.0", BTFAvailable: true, CanLoadPrograms: true})
	if !strings.Contains(out, "5.15.0") {
		t.Errorf("expected kernel version in output, got %q", out)
	}
}

func TestFormatHandlesUnknownVersion(t *testing.T) {
	out := Format(Report{})
	if !strings.Contains(out, "unknown") {
		t.Errorf("expected 'unknown' placeholder, got %q", out)
	}
}
