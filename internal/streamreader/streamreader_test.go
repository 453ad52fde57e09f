package streamreader

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

// TestSupervisorDeliversRecordsAndStops verifies that a short-lived
// child's stdout lines reach the handler and that Stop ends Run.
func TestSupervisorDeliversRecordsAndStops(t *testing.T) {
	var got []string
	handler := func(line string) RecordResult {
		got = append(got, line)
		return Accepted
	}

	first := true
	spawn := func(ctx context.Context) (*exec.Cmd, error) {
		if !first {
			// Subsequent spawns just idle; the test stops before backoff matters.
			return exec.CommandContext(ctx, "sleep", "5"), nil
		}
		first = false
		return exec.CommandContext(ctx, "/bin/sh", "-c", "printf 'one\\ntwo\\n'"), nil
	}

	sup := New(spawn, handler, nil, discardLogger())

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for records, got %v", got)
		case <-time.After(10 * time.Millisecond):
		}
	}

	sup.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("got %v, want [one two]", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sup := New(func(ctx context.Context) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "true"), nil
	}, func(string) RecordResult { return Accepted }, nil, discardLogger())

	sup.Stop()
	sup.Stop()
	if !sup.stopped.Load() {
		t.Fatal("expected stopped to be true")
	}
}

func TestTrimNewline(t *testing.T) {
	cases := map[string]string{
		"foo\n":   "foo",
		"foo\r\n": "foo",
		"foo":     "foo",
		"":        "",
	}
	for in, want := range cases {
		if got := trimNewline(in); got != want {
			t.Errorf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}
