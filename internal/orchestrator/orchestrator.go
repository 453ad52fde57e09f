// Package orchestrator wires the collectors, aggregator, trigger
// engine, analyzer, and alert dispatcher into the worker topology
// described in spec §4.10/§5: parallel workers communicating over
// channels, with a single evaluator owning the Aggregator.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baikal/sentinel/internal/aggregator"
	"github.com/baikal/sentinel/internal/alert"
	"github.com/baikal/sentinel/internal/analyzer"
	"github.com/baikal/sentinel/internal/config"
	"github.com/baikal/sentinel/internal/llm"
	"github.com/baikal/sentinel/internal/logsource"
	"github.com/baikal/sentinel/internal/metricsource"
	"github.com/baikal/sentinel/internal/model"
	"github.com/baikal/sentinel/internal/trigger"
)

const (
	tickerCadence      = 500 * time.Millisecond
	retryDriverCadence = 1 * time.Second
)

// Orchestrator owns the full worker topology for one run.
type Orchestrator struct {
	cfg config.Config
	log zerolog.Logger

	logCollector    *logsource.Collector
	metricCollector *metricsource.Collector
	aggregatorState *aggregator.Aggregator
	engine          *trigger.Engine
	analyzerState   *analyzer.Analyzer
	dispatcher      *alert.Dispatcher

	insightSink func(model.Insight)

	stopped atomic.Bool
	wg      sync.WaitGroup
}

// Components bundles the constructed, pluggable collaborators an
// Orchestrator drives. Callers assemble these from cfg (backend
// variant selection, notifier transport, log/metric source commands)
// since those choices are external per §6.
type Components struct {
	LogCollector    *logsource.Collector
	MetricCollector *metricsource.Collector
	Backend         llm.Backend
	Notifier        alert.Notifier
}

// New constructs an Orchestrator from configuration and the
// externally-assembled components.
func New(cfg config.Config, comps Components, log zerolog.Logger) *Orchestrator {
	agg := aggregator.New(cfg.Buffer.MaxSize, cfg.Buffer.MaxAge, cfg.Buffer.MaxSize, cfg.Buffer.MaxAge)

	engine := trigger.NewEngine(
		trigger.ErrorFrequencyRule{
			Threshold: cfg.Trigger.ErrorThreshold,
			Window:    cfg.Trigger.ErrorWindow,
			Severity:  model.SeverityWarning,
		},
		trigger.MemoryPressureRule{
			MinLevel: cfg.Trigger.MemoryThreshold,
			Severity: model.SeverityWarning,
		},
		trigger.NewCrashDetectionRule(),
		trigger.ResourceSpikeRule{
			CPUSpikeThresholdMW: cfg.Trigger.CPUSpikeThresholdMW,
			GPUSpikeThresholdMW: cfg.Trigger.GPUSpikeThresholdMW,
			ComparisonWindow:    cfg.Trigger.SpikeComparisonWindow,
			Severity:            model.SeverityWarning,
		},
	)

	az := analyzer.New(comps.Backend, log,
		analyzer.WithMaxAttempts(cfg.Retry.MaxAttempts),
		analyzer.WithBaseDelay(cfg.Retry.BaseDelay),
		analyzer.WithMaxQueueSize(cfg.Retry.MaxQueue),
	)

	dispatcher := alert.New(comps.Notifier, log,
		alert.WithMaxPerWindow(cfg.Alerts.RateLimitPerMinute),
		alert.WithWindow(time.Minute),
		alert.WithMaxQueueSize(cfg.Alerts.MaxDeferred),
	)

	return &Orchestrator{
		cfg:             cfg,
		log:             log.With().Str("component", "orchestrator").Logger(),
		logCollector:    comps.LogCollector,
		metricCollector: comps.MetricCollector,
		aggregatorState: agg,
		engine:          engine,
		analyzerState:   az,
		dispatcher:      dispatcher,
	}
}

// Run spawns every worker and blocks until ctx is cancelled or Stop
// is called, then performs ordered shutdown.
func (o *Orchestrator) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.logCollector.Run(ctx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.metricCollector.Run(ctx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.evaluatorLoop(ctx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.notificationTicker(ctx)
	}()

	<-ctx.Done()
	o.Stop()
	o.wg.Wait()
}

// Aggregator exposes the live event window for the optional, default-off
// MCP surface (internal/mcpsurface). Callers reading it do so from a
// goroutine other than the evaluator; this is an accepted simplification
// for that read-only, diagnostic-only feature, documented in DESIGN.md.
func (o *Orchestrator) Aggregator() *aggregator.Aggregator {
	return o.aggregatorState
}

// SetInsightSink registers a callback invoked with every Insight the
// dispatcher is handed, in addition to normal notification delivery.
// Used to feed the MCP surface's insight history; nil by default.
func (o *Orchestrator) SetInsightSink(fn func(model.Insight)) {
	o.insightSink = fn
}

// Stop sets the global stop flag and requests collector shutdown.
// Idempotent (§8 property 14).
func (o *Orchestrator) Stop() {
	if o.stopped.CompareAndSwap(false, true) {
		o.logCollector.Stop()
		o.metricCollector.Stop()
	}
}

// evaluatorLoop owns the Aggregator exclusively: it is the sole
// consumer of both event channels and the sole mutator of o's
// aggregator state (§5 "Aggregator: owned by the Evaluator").
func (o *Orchestrator) evaluatorLoop(ctx context.Context) {
	retryTicker := time.NewTicker(retryDriverCadence)
	defer retryTicker.Stop()

	logCh := o.logCollector.Events
	metricCh := o.metricCollector.Events

	for {
		select {
		case e, ok := <-logCh:
			if !ok {
				logCh = nil
				break
			}
			o.aggregatorState.AddLog(e)
			o.evaluateAndAnalyze(ctx)

		case e, ok := <-metricCh:
			if !ok {
				metricCh = nil
				break
			}
			o.aggregatorState.AddMetric(e)
			o.evaluateAndAnalyze(ctx)

		case <-retryTicker.C:
			o.analyzerState.ProcessRetryQueue(ctx)
			o.drainAnalyzerInsights()

		case <-ctx.Done():
			return
		}

		if logCh == nil && metricCh == nil {
			return
		}
	}
}

func (o *Orchestrator) evaluateAndAnalyze(ctx context.Context) {
	recentLogs := o.aggregatorState.RecentLogs(o.cfg.Buffer.MaxAge)
	recentMetrics := o.aggregatorState.RecentMetrics(o.cfg.Buffer.MaxAge)

	tc, fired := o.engine.Evaluate(recentLogs, recentMetrics, time.Now())
	if !fired {
		return
	}
	tc.CorrelationID = uuid.NewString()

	ins, err := o.analyzerState.Analyze(ctx, tc)
	if err != nil {
		o.log.Debug().Err(err).Str("rule", tc.RuleName).Str("correlation_id", tc.CorrelationID).Msg("analysis failed, enqueued for retry")
		return
	}
	ins.CorrelationID = tc.CorrelationID
	o.dispatcher.SendAlert(ins)
	if o.insightSink != nil {
		o.insightSink(ins)
	}
}

// drainAnalyzerInsights forwards any insights the retry queue
// produced since the last drain to the dispatcher.
func (o *Orchestrator) drainAnalyzerInsights() {
	for {
		select {
		case ins := <-o.analyzerState.Insights:
			o.dispatcher.SendAlert(ins)
			if o.insightSink != nil {
				o.insightSink(ins)
			}
		default:
			return
		}
	}
}

// notificationTicker drives the dispatcher's tick() on a steady
// cadence (§4.10, §5).
func (o *Orchestrator) notificationTicker(ctx context.Context) {
	ticker := time.NewTicker(tickerCadence)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.dispatcher.Tick()
		case <-ctx.Done():
			return
		}
	}
}
