// Package streamreader runs a supervised child process and delivers
// its stdout as a sequence of newline-terminated records, tolerating
// partial reads, malformed fragments, and process death (spec §4.1).
package streamreader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// RecordResult is returned by a RecordHandler.
type RecordResult int

const (
	Accepted RecordResult = iota
	Skipped
)

// RecordHandler consumes one complete record string. It must be pure
// with respect to the reader's own state: its only observable side
// effect is whatever the caller does with the record.
type RecordHandler func(line string) RecordResult

// Status is reported to the owning collector when the supervisor
// changes operational mode.
type Status int

const (
	StatusRunning Status = iota
	StatusDegraded
)

// StatusHandler is invoked on supervisor status transitions.
type StatusHandler func(Status)

const (
	minBackoff         = 1 * time.Second
	maxBackoff         = 60 * time.Second
	degradedThreshold  = 5
	degradedCooldown   = 60 * time.Second
	stopPollInterval   = 500 * time.Millisecond
	readChunkSize      = 4096
)

// Spawner builds the *exec.Cmd for one supervised run. Collectors
// supply this to control argv and environment without the reader
// needing to know about any particular source.
type Spawner func(ctx context.Context) (*exec.Cmd, error)

// Supervisor runs a child process under the restart-with-backoff
// harness shared by every collector (§4.1 "Supervisor loop").
type Supervisor struct {
	spawn   Spawner
	handler RecordHandler
	stopped atomic.Bool
	log     zerolog.Logger

	onStatus StatusHandler
	current  atomic.Pointer[exec.Cmd]
}

// New creates a Supervisor. Shutdown is requested through Stop; the
// supervisor's backoff and cooldown sleeps poll the stop flag at least
// every 500ms.
func New(spawn Spawner, handler RecordHandler, onStatus StatusHandler, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		spawn:    spawn,
		handler:  handler,
		onStatus: onStatus,
		log:      log,
	}
}

// Stop requests shutdown. Idempotent: setting it twice has no
// additional effect (spec §8 property 14).
func (s *Supervisor) Stop() {
	s.stopped.Store(true)
	// Unblock a reader parked on a blocking read of the child's stdout
	// by terminating it immediately rather than waiting for the next
	// stop-flag poll.
	if cmd := s.current.Load(); cmd != nil && cmd.Process != nil {
		_ = unix.Kill(cmd.Process.Pid, unix.SIGTERM)
	}
}

// Run drives the supervisor loop until Stop is called. It never
// returns an error for ordinary child death; only stop-flag
// observation ends the loop.
func (s *Supervisor) Run(ctx context.Context) {
	consecutiveFailures := 0

	for !s.stopped.Load() {
		cmd, err := s.spawn(ctx)
		if err != nil {
			consecutiveFailures++
			s.log.Debug().Err(err).Int("consecutive_failures", consecutiveFailures).Msg("spawn failed")
			if !s.sleepBackoff(consecutiveFailures) {
				return
			}
			continue
		}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			consecutiveFailures++
			s.log.Debug().Err(err).Msg("stdout pipe failed")
			if !s.sleepBackoff(consecutiveFailures) {
				return
			}
			continue
		}
		if err := cmd.Start(); err != nil {
			consecutiveFailures++
			s.log.Debug().Err(err).Msg("start failed")
			if !s.sleepBackoff(consecutiveFailures) {
				return
			}
			continue
		}
		s.current.Store(cmd)

		delivered := s.readLoop(stdout)
		if s.stopped.Load() {
			_ = unix.Kill(cmd.Process.Pid, unix.SIGTERM)
		}
		waitErr := cmd.Wait()
		s.current.Store(nil)

		if s.stopped.Load() {
			return
		}

		if delivered {
			consecutiveFailures = 0
			continue
		}

		consecutiveFailures++
		s.log.Debug().Err(waitErr).Int("consecutive_failures", consecutiveFailures).Msg("child exited")

		if consecutiveFailures >= degradedThreshold {
			s.reportStatus(StatusDegraded)
			if !s.sleepStoppable(degradedCooldown) {
				return
			}
			consecutiveFailures = 0
			continue
		}

		if !s.sleepBackoff(consecutiveFailures) {
			return
		}
	}
}

func (s *Supervisor) reportStatus(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

// readLoop extracts newline-terminated records from stdout until EOF,
// a read error, or the stop flag is observed. It reports whether at
// least one record was successfully delivered to the handler, which
// the supervisor uses to reset its failure counter (§4.1 step 4).
func (s *Supervisor) readLoop(stdout io.Reader) bool {
	reader := bufio.NewReaderSize(stdout, readChunkSize)
	delivered := false

	for {
		if s.stopped.Load() {
			return delivered
		}

		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			trimmed := trimNewline(line)
			if trimmed != "" {
				if s.handler(trimmed) == Accepted {
					delivered = true
				}
			}
		}
		if err != nil {
			return delivered
		}
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

// sleepBackoff sleeps min(1s * 2^(failures-1), 60s), polling the stop
// flag every 500ms. Returns false if stop was observed mid-sleep.
func (s *Supervisor) sleepBackoff(failures int) bool {
	delay := minBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			delay = maxBackoff
			break
		}
	}
	return s.sleepStoppable(delay)
}

// sleepStoppable sleeps for d, polling the stop flag every
// stopPollInterval. Returns false if stop was observed.
func (s *Supervisor) sleepStoppable(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if s.stopped.Load() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > stopPollInterval {
			time.Sleep(stopPollInterval)
		} else {
			time.Sleep(remaining)
		}
	}
}

// ErrSpawn wraps a fatal spawn error returned by a Spawner.
func ErrSpawn(name string, err error) error {
	return fmt.Errorf("spawn %s: %w", name, err)
}
