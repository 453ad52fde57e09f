// Package metricsource implements the Metric Collector (spec §4.3):
// samples a resource-metrics source at a configured interval, parses
// its structured payload into model.MetricEvent, and falls back to a
// coarser data source when the primary is unavailable.
package metricsource

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/baikal/sentinel/internal/model"
	"github.com/baikal/sentinel/internal/streamreader"
)

// primaryRecord mirrors the primary metric source's structured payload (§6).
type primaryRecord struct {
	Timestamp       string   `json:"timestamp"`
	CPUPowerMW      float64  `json:"cpu_power_mw"`
	CPUUsagePercent *float64 `json:"cpu_usage_percent"`
	GPUPowerMW      *float64 `json:"gpu_power_mw"`
	GPUUsagePercent *float64 `json:"gpu_usage_percent"`
	MemoryPressure  string   `json:"memory_pressure"`
	MemoryUsedMB    float64  `json:"memory_used_mb"`
	EnergyImpact    float64  `json:"energy_impact"`
}

// fallbackRecord mirrors the coarser fallback source's simpler payload (§6).
// GPU fields are omitted entirely by the fallback source, not merely
// zeroed (§9 Open Questions: "The source specifies omission").
type fallbackRecord struct {
	Timestamp      string   `json:"timestamp"`
	CPUPowerMW     float64  `json:"cpu_power_mw"`
	GPUPowerMW     *float64 `json:"gpu_power_mw"`
	MemoryPressure string   `json:"memory_pressure"`
}

// Prober checks whether the primary metrics source is usable on this
// host (§4.3 "capability probe").
type Prober func() bool

// Command builds the argv for a sampling command. Primary and
// Fallback are spawned as one-shot samplers, re-invoked every interval
// (mirroring how melisai's Tier-1 collectors shell out per sample).
type Command struct {
	Name string
	Args []string
}

// Collector drives the primary or fallback metrics source at a fixed
// sampling interval and emits parsed MetricEvents on Events.
type Collector struct {
	primary    Command
	fallback   Command
	probe      Prober
	interval   time.Duration
	runner     commandRunner
	fallenBack bool

	Events chan model.MetricEvent

	stopped chan struct{}
	done    chan struct{}
	log     zerolog.Logger

	onDegraded func()
}

// commandRunner abstracts subprocess execution for testability.
type commandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = streamreader.SanitizeEnv()
	return c.Output()
}

// New creates a Metric Collector sampling at interval, probing the
// primary source at construction and falling back per §4.3/§7.
func New(primary, fallback Command, probe Prober, interval time.Duration, onDegraded func(), log zerolog.Logger) *Collector {
	return &Collector{
		primary:    primary,
		fallback:   fallback,
		probe:      probe,
		interval:   interval,
		runner:     execRunner{},
		Events:     make(chan model.MetricEvent, 64),
		stopped:    make(chan struct{}),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "metricsource").Logger(),
		onDegraded: onDegraded,
	}
}

// Run samples at the configured interval until Stop is called.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.done)
	defer close(c.Events)

	if c.probe != nil && !c.probe() {
		c.fallenBack = true
		c.log.Warn().Msg("primary metrics source unavailable at startup, using fallback")
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	if c.sampleOnce(ctx, &consecutiveFailures) && !c.pauseStoppable(ctx, degradedPause) {
		return
	}

	for {
		select {
		case <-ticker.C:
			if c.sampleOnce(ctx, &consecutiveFailures) && !c.pauseStoppable(ctx, degradedPause) {
				return
			}
		case <-c.stopped:
			return
		case <-ctx.Done():
			return
		}
	}
}

// degradedPause is the hold-off (§4.3/§7: "holds for 60s before
// retrying") after switching sources on repeated failure, before
// sampling resumes at the normal interval.
const degradedPause = 60 * time.Second

// pauseStoppable blocks for d or until Stop/ctx cancellation, whichever
// comes first. Returns false if shutdown was observed mid-pause.
func (c *Collector) pauseStoppable(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop requests shutdown (idempotent: closing a closed channel would
// panic, so guard with a select).
func (c *Collector) Stop() {
	select {
	case <-c.stopped:
	default:
		close(c.stopped)
	}
}

// sampleOnce takes one sample and reports whether the caller should
// hold off for degradedPause before the next attempt: true once on the
// sample that trips the failure threshold, whether that switches the
// collector to the fallback source or, the fallback having failed too,
// simply holds there (§4.3/§7).
func (c *Collector) sampleOnce(ctx context.Context, consecutiveFailures *int) bool {
	cmd := c.primary
	if c.fallenBack {
		cmd = c.fallback
	}

	out, err := c.runner.Run(ctx, cmd)
	if err != nil {
		*consecutiveFailures++
		c.log.Debug().Err(err).Int("consecutive_failures", *consecutiveFailures).Msg("metric sample failed")
		if *consecutiveFailures >= 5 {
			*consecutiveFailures = 0
			if !c.fallenBack {
				c.log.Warn().Msg("metric source degraded, switching to fallback")
				if c.onDegraded != nil {
					c.onDegraded()
				}
				c.fallenBack = true
			} else {
				c.log.Warn().Msg("fallback metric source also failing, holding before retry")
			}
			return true
		}
		return false
	}

	event, ok := c.parse(out)
	if !ok {
		*consecutiveFailures++
		return false
	}
	*consecutiveFailures = 0

	select {
	case c.Events <- event:
	case <-c.stopped:
	case <-ctx.Done():
	}
	return false
}

func (c *Collector) parse(out []byte) (model.MetricEvent, bool) {
	if c.fallenBack {
		return c.parseFallback(out)
	}
	return c.parsePrimary(out)
}

func (c *Collector) parsePrimary(out []byte) (model.MetricEvent, bool) {
	var rec primaryRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		c.log.Debug().Err(err).Msg("skipping malformed primary metric frame")
		return model.MetricEvent{}, false
	}
	ts, ok := parseTimestamp(rec.Timestamp)
	if !ok {
		c.log.Debug().Str("timestamp", rec.Timestamp).Msg("skipping metric frame with unparseable timestamp")
		return model.MetricEvent{}, false
	}
	pressure, ok := model.ParseMemoryPressure(rec.MemoryPressure)
	if !ok {
		c.log.Debug().Str("memory_pressure", rec.MemoryPressure).Msg("skipping metric frame with unrecognized memory_pressure")
		return model.MetricEvent{}, false
	}
	return model.MetricEvent{
		Timestamp:       ts,
		CPUPowerMW:      rec.CPUPowerMW,
		CPUUsagePercent: rec.CPUUsagePercent,
		GPUPowerMW:      rec.GPUPowerMW,
		GPUUsagePercent: rec.GPUUsagePercent,
		MemoryPressure:  pressure,
		MemoryUsedMB:    rec.MemoryUsedMB,
		EnergyImpact:    rec.EnergyImpact,
	}, true
}

func (c *Collector) parseFallback(out []byte) (model.MetricEvent, bool) {
	var rec fallbackRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		c.log.Debug().Err(err).Msg("skipping malformed fallback metric frame")
		return model.MetricEvent{}, false
	}
	ts, ok := parseTimestamp(rec.Timestamp)
	if !ok {
		return model.MetricEvent{}, false
	}
	pressure, ok := model.ParseMemoryPressure(rec.MemoryPressure)
	if !ok {
		return model.MetricEvent{}, false
	}
	return model.MetricEvent{
		Timestamp:      ts,
		CPUPowerMW:     rec.CPUPowerMW,
		GPUPowerMW:     rec.GPUPowerMW,
		MemoryPressure: pressure,
	}, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000000-0700",
	"2006-01-02 15:04:05-0700",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
