// Package telemetry configures the process-wide zerolog logger.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the base logger's output and verbosity.
type Options struct {
	Level  string // "debug", "info", "warn", "error"
	Pretty bool
	Out    io.Writer
}

// Configure builds the base logger used across the process. Unknown
// levels fall back to Info rather than failing construction.
func Configure(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).With().Timestamp().Str("service", "sentinel").Logger()
}
