// Package alert implements the Rate-Limited Alert Dispatcher (spec
// §4.9): delivers Critical Insights to an external notification
// primitive, deferring traffic that exceeds a sliding-window rate
// limit and dropping on overflow.
package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baikal/sentinel/internal/model"
)

const (
	defaultMaxPerWindow = 3
	defaultWindow       = 60 * time.Second
	defaultMaxQueueSize = 100

	titleMaxLen = 256
	bodyMaxLen  = 1024

	nearCapacityWarningRatio = 0.8
)

// Notifier is the external "display-notification" primitive (§6): a
// blocking call that may fail but never crashes the dispatcher.
type Notifier interface {
	Notify(title, body string) error
}

// Dispatcher holds the sliding-window limiter and the deferred queue.
// State is guarded by mu, held only for the duration of SendAlert and
// Tick (§5: "behind a single mutex; held only during send_alert and
// tick") — the internal helpers below assume the lock is already held
// and never block or re-acquire it.
type Dispatcher struct {
	notifier Notifier

	maxPerWindow int
	window       time.Duration
	maxQueueSize int

	mu      sync.Mutex
	sent    []time.Time
	pending []model.Insight

	now func() time.Time
	log zerolog.Logger
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

func WithMaxPerWindow(n int) Option     { return func(d *Dispatcher) { d.maxPerWindow = n } }
func WithWindow(w time.Duration) Option { return func(d *Dispatcher) { d.window = w } }
func WithMaxQueueSize(n int) Option     { return func(d *Dispatcher) { d.maxQueueSize = n } }

// New creates a Dispatcher delivering through notifier.
func New(notifier Notifier, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifier:     notifier,
		maxPerWindow: defaultMaxPerWindow,
		window:       defaultWindow,
		maxQueueSize: defaultMaxQueueSize,
		now:          time.Now,
		log:          log.With().Str("component", "alert").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendAlert is the entry point for a newly produced Insight (§4.9 step 1-4).
func (d *Dispatcher) SendAlert(ins model.Insight) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ins.Severity < model.SeverityCritical {
		d.log.Debug().Str("severity", ins.Severity.String()).Msg("non-critical insight, no notification dispatched")
		return
	}

	d.drain()

	if d.limiterAllows() {
		d.deliver(ins)
		return
	}

	d.enqueue(ins)
}

// Tick drains the deferred queue on a timer and returns the count of
// insights successfully delivered in this invocation.
func (d *Dispatcher) Tick() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.drain()
}

// drain expires stale limiter timestamps, then delivers as many
// pending insights as the limiter allows.
func (d *Dispatcher) drain() int {
	d.expireLimiter()

	delivered := 0
	for d.limiterAllows() && len(d.pending) > 0 {
		ins := d.pending[0]
		d.pending = d.pending[1:]
		if d.deliver(ins) {
			delivered++
		}
	}
	return delivered
}

func (d *Dispatcher) expireLimiter() {
	cutoff := d.now().Add(-d.window)
	start := 0
	for start < len(d.sent) && d.sent[start].Before(cutoff) {
		start++
	}
	if start > 0 {
		d.sent = d.sent[start:]
	}
}

func (d *Dispatcher) limiterAllows() bool {
	return len(d.sent) < d.maxPerWindow
}

// deliver invokes the notification primitive. Failure is logged and
// swallowed, never re-enqueued (§7).
func (d *Dispatcher) deliver(ins model.Insight) bool {
	title, body := render(ins)
	if err := d.notifier.Notify(title, body); err != nil {
		d.log.Warn().Err(err).Msg("notification primitive failed, insight dropped")
		return false
	}
	d.sent = append(d.sent, d.now())
	return true
}

func (d *Dispatcher) enqueue(ins model.Insight) {
	d.pending = append(d.pending, ins)
	if len(d.pending) > d.maxQueueSize {
		d.pending = d.pending[1:]
		d.log.Warn().Msg("deferred alert queue overflow, dropped oldest entry")
	} else if float64(len(d.pending)) >= nearCapacityWarningRatio*float64(d.maxQueueSize) {
		d.log.Warn().Int("queue_len", len(d.pending)).Int("max", d.maxQueueSize).Msg("deferred alert queue near capacity")
	}
}

// PendingLen reports the deferred queue length, for tests and diagnostics.
func (d *Dispatcher) PendingLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func render(ins model.Insight) (title, body string) {
	title = truncate("System Alert: "+ins.Summary, titleMaxLen)

	var b strings.Builder
	if ins.RootCause != nil && *ins.RootCause != "" {
		fmt.Fprintf(&b, "Cause: %s\n\n", *ins.RootCause)
	}
	b.WriteString("Recommendations:\n")

	shown := ins.Recommendations
	more := 0
	if len(shown) > 3 {
		more = len(shown) - 3
		shown = shown[:3]
	}
	for i, rec := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
	}
	if more > 0 {
		fmt.Fprintf(&b, "... and %d more\n", more)
	}

	body = truncate(b.String(), bodyMaxLen)
	return title, body
}

// truncate cuts s to at most max bytes on a valid UTF-8 rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
