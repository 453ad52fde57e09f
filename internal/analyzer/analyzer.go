// Package analyzer implements the Analyzer and Retry Queue (spec
// §4.8): drives the LLM backend for a Trigger Context, and retries
// failed attempts with exponential backoff up to a bounded queue.
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/baikal/sentinel/internal/llm"
	"github.com/baikal/sentinel/internal/model"
)

const (
	defaultMaxQueueSize = 100
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 1 * time.Second

	// nearCapacityWarningRatio is a supplemental diagnostic: once the
	// retry queue reaches this fraction of max_queue_size, a warning
	// is logged before overflow begins dropping entries.
	nearCapacityWarningRatio = 0.8
)

// Analyzer drives the backend and owns the retry queue. Insights
// produced on first success or on a later retry success are forwarded
// to Insights.
type Analyzer struct {
	backend      llm.Backend
	maxQueueSize int
	maxAttempts  int
	baseDelay    time.Duration

	queue []model.RetryEntry

	Insights chan model.Insight

	now func() time.Time
	log zerolog.Logger
}

// Option configures an Analyzer at construction.
type Option func(*Analyzer)

// WithMaxQueueSize overrides the default retry queue capacity.
func WithMaxQueueSize(n int) Option { return func(a *Analyzer) { a.maxQueueSize = n } }

// WithMaxAttempts overrides the default max retry attempts.
func WithMaxAttempts(n int) Option { return func(a *Analyzer) { a.maxAttempts = n } }

// WithBaseDelay overrides the default retry base delay.
func WithBaseDelay(d time.Duration) Option { return func(a *Analyzer) { a.baseDelay = d } }

// New creates an Analyzer over the given backend.
func New(backend llm.Backend, log zerolog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		backend:      backend,
		maxQueueSize: defaultMaxQueueSize,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		Insights:     make(chan model.Insight, 64),
		now:          time.Now,
		log:          log.With().Str("component", "analyzer").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze attempts the backend once. On success the Insight is
// returned directly (and not also forwarded on Insights — that
// channel is only for retry-queue successes, per §4.8/§5: the
// evaluator receives the first attempt's result synchronously). On
// failure, a Retry Entry is enqueued and the error is returned.
func (a *Analyzer) Analyze(ctx context.Context, tc model.TriggerContext) (model.Insight, error) {
	ins, err := a.backend.Analyze(ctx, tc)
	if err != nil {
		a.enqueue(model.RetryEntry{
			Context:       tc,
			AttemptCount:  1,
			NextRetryTime: a.now().Add(a.baseDelay),
		})
		return model.Insight{}, err
	}
	return ins, nil
}

func (a *Analyzer) enqueue(entry model.RetryEntry) {
	a.queue = append(a.queue, entry)
	if len(a.queue) > a.maxQueueSize {
		dropped := a.queue[0]
		a.queue = a.queue[1:]
		a.log.Warn().Str("rule", dropped.Context.RuleName).Msg("retry queue overflow, dropped oldest entry")
	} else if float64(len(a.queue)) >= nearCapacityWarningRatio*float64(a.maxQueueSize) {
		a.log.Warn().Int("queue_len", len(a.queue)).Int("max", a.maxQueueSize).Msg("retry queue near capacity")
	}
}

// QueueLen reports the current retry queue length, for tests and
// diagnostics.
func (a *Analyzer) QueueLen() int { return len(a.queue) }

// ProcessRetryQueue walks entries whose NextRetryTime has elapsed,
// removes them, and retries each in FIFO order within this batch
// (§4.8: "serialized on the backend").
func (a *Analyzer) ProcessRetryQueue(ctx context.Context) {
	now := a.now()

	var ready []model.RetryEntry
	var pending []model.RetryEntry
	for _, e := range a.queue {
		if !e.NextRetryTime.After(now) {
			ready = append(ready, e)
		} else {
			pending = append(pending, e)
		}
	}
	a.queue = pending

	for _, e := range ready {
		ins, err := a.backend.Analyze(ctx, e.Context)
		if err == nil {
			ins.CorrelationID = e.Context.CorrelationID
			select {
			case a.Insights <- ins:
			default:
				a.log.Warn().Msg("insight channel full, dropping retry result")
			}
			continue
		}

		// Scenario: attempt_count tracks attempts already made. A further
		// retry would be attempt_count+2 overall; once that would exceed
		// max_attempts the entry is discarded instead of rescheduled.
		if e.AttemptCount+1 >= a.maxAttempts {
			a.log.Warn().Str("rule", e.Context.RuleName).Int("attempts", e.AttemptCount+1).Msg("retry entry exhausted max attempts, discarding")
			continue
		}

		e.AttemptCount++
		e.NextRetryTime = now.Add(a.baseDelay * time.Duration(pow2(e.AttemptCount-1)))
		a.enqueue(e)
	}
}

func pow2(n int) int64 {
	r := int64(1)
	for i := 0; i < n; i++ {
		r *= 2
	}
	return r
}
