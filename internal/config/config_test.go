package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadEmptyYieldsDefault(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Metrics.Interval != 5*time.Second {
		t.Errorf("Metrics.Interval = %v, want 5s default", cfg.Metrics.Interval)
	}
}

func TestLoadOverridesMergeWithDefaults(t *testing.T) {
	yaml := `
triggers:
  error_threshold: 10
  memory_threshold: Critical
`
	cfg, err := Load(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Trigger.ErrorThreshold != 10 {
		t.Errorf("ErrorThreshold = %d, want 10", cfg.Trigger.ErrorThreshold)
	}
	if cfg.Buffer.MaxSize != 1000 {
		t.Errorf("expected untouched field to retain default, got %d", cfg.Buffer.MaxSize)
	}
}

func TestValidateAggregatesMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Interval = 0
	cfg.Retry.MaxAttempts = 0
	cfg.AI.Backend = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"metrics.interval", "retry.max_attempts", "ai.backend"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}
