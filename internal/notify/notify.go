// Package notify provides adapters for the external "display-notification"
// primitive (spec §6): a platform-specific, blocking (title, body) call
// that the Alert Dispatcher treats as an opaque collaborator.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/baikal/sentinel/internal/streamreader"
)

const defaultTimeout = 5 * time.Second

// CommandNotifier shells out to a configurable notification command,
// passing the arguments that Args builds from the title and body.
type CommandNotifier struct {
	Name    string
	Args    func(title, body string) []string
	Timeout time.Duration
}

// NewCommandNotifier creates a notifier invoking name with args built
// from the title/body pair, using the default timeout.
func NewCommandNotifier(name string, args func(title, body string) []string) *CommandNotifier {
	return &CommandNotifier{Name: name, Args: args, Timeout: defaultTimeout}
}

// Notify runs the configured command, returning its error if any
// (including timeout).
func (n *CommandNotifier) Notify(title, body string) error {
	timeout := n.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, n.Name, n.Args(title, body)...)
	cmd.Env = streamreader.SanitizeEnv()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("display-notification command failed: %w", err)
	}
	return nil
}

// NoOp discards every notification; used for dry-run operation and tests.
type NoOp struct{}

func (NoOp) Notify(string, string) error { return nil }
