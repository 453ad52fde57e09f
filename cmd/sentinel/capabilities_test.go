package main

import (
	"bytes"
	"testing"
)

func TestCapabilitiesCommandProducesOutput(t *testing.T) {
	var buf bytes.Buffer
	cmd := newCapabilitiesCmd()
	cmd.SetOut(&buf)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty capabilities report")
	}
}
