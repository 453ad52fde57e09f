package telemetry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureDefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Configure(Options{Out: &buf})
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected debug message to be suppressed at default info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("expected info message to be emitted")
	}
}

func TestConfigureInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Out: &buf, Level: "not-a-level"})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel() = %v, want Info", zerolog.GlobalLevel())
	}
}
