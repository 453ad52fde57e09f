// Package config defines the single configuration record passed to
// the orchestrator at construction (spec §6), its defaults, and
// validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baikal/sentinel/internal/model"
)

// Config mirrors every recognized option in the §6 table.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Trigger TriggerConfig `yaml:"triggers"`
	AI      AIConfig      `yaml:"ai"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Retry   RetryConfig   `yaml:"retry"`
	MCP     MCPConfig     `yaml:"mcp"`
}

type LoggingConfig struct {
	Filter string `yaml:"filter"`
}

type MetricsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type BufferConfig struct {
	MaxAge  time.Duration `yaml:"max_age"`
	MaxSize int           `yaml:"max_size"`
}

type TriggerConfig struct {
	ErrorThreshold        int                  `yaml:"error_threshold"`
	ErrorWindow           time.Duration        `yaml:"error_window"`
	MemoryThreshold       model.MemoryPressure `yaml:"memory_threshold"`
	CPUSpikeThresholdMW   float64              `yaml:"cpu_spike_threshold_mw"`
	GPUSpikeThresholdMW   float64              `yaml:"gpu_spike_threshold_mw"`
	SpikeComparisonWindow time.Duration        `yaml:"spike_comparison_window"`
}

type AIConfig struct {
	Backend    string `yaml:"backend"` // "local", "remote", "mock"
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	Credential string `yaml:"credential"`
}

type AlertsConfig struct {
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	MaxDeferred        int `yaml:"max_deferred"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxQueue    int           `yaml:"max_queue"`
}

// MCPConfig controls the optional, default-off read-only MCP surface.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration record per the §6 default column.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Filter: "messageType == error OR messageType == fault"},
		Metrics: MetricsConfig{Interval: 5 * time.Second},
		Buffer:  BufferConfig{MaxAge: 60 * time.Second, MaxSize: 1000},
		Trigger: TriggerConfig{
			ErrorThreshold:        5,
			ErrorWindow:           10 * time.Second,
			MemoryThreshold:       model.MemoryWarning,
			CPUSpikeThresholdMW:   1000,
			GPUSpikeThresholdMW:   2000,
			SpikeComparisonWindow: 30 * time.Second,
		},
		AI: AIConfig{Backend: "local", Endpoint: "http://localhost:11434/api/generate", Model: "local-default"},
		Alerts: AlertsConfig{RateLimitPerMinute: 3, MaxDeferred: 100},
		Retry:  RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxQueue: 100},
		MCP:    MCPConfig{Enabled: false},
	}
}

// Load reads a YAML configuration document, applying defaults for any
// field left unset, then validates it.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate aggregates every constraint violation in the §6 table into
// a single joined error.
func (c Config) Validate() error {
	var errs []error

	if c.Metrics.Interval < time.Second {
		errs = append(errs, fmt.Errorf("metrics.interval must be >= 1s, got %s", c.Metrics.Interval))
	}
	if c.Buffer.MaxAge < time.Second {
		errs = append(errs, fmt.Errorf("buffer.max_age must be >= 1s, got %s", c.Buffer.MaxAge))
	}
	if c.Buffer.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("buffer.max_size must be >= 1, got %d", c.Buffer.MaxSize))
	}
	if c.Trigger.ErrorThreshold < 1 {
		errs = append(errs, fmt.Errorf("triggers.error_threshold must be >= 1, got %d", c.Trigger.ErrorThreshold))
	}
	if c.Trigger.ErrorWindow < time.Second {
		errs = append(errs, fmt.Errorf("triggers.error_window must be >= 1s, got %s", c.Trigger.ErrorWindow))
	}
	if c.Trigger.CPUSpikeThresholdMW < 0 {
		errs = append(errs, fmt.Errorf("triggers.cpu_spike_threshold_mw must be non-negative"))
	}
	if c.Trigger.GPUSpikeThresholdMW < 0 {
		errs = append(errs, fmt.Errorf("triggers.gpu_spike_threshold_mw must be non-negative"))
	}
	if c.Trigger.SpikeComparisonWindow < time.Second {
		errs = append(errs, fmt.Errorf("triggers.spike_comparison_window must be >= 1s, got %s", c.Trigger.SpikeComparisonWindow))
	}
	switch c.AI.Backend {
	case "local", "remote", "mock":
	default:
		errs = append(errs, fmt.Errorf("ai.backend must be one of local, remote, mock, got %q", c.AI.Backend))
	}
	if c.Alerts.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("alerts.rate_limit_per_minute must be >= 1, got %d", c.Alerts.RateLimitPerMinute))
	}
	if c.Alerts.MaxDeferred < 1 {
		errs = append(errs, fmt.Errorf("alerts.max_deferred must be >= 1, got %d", c.Alerts.MaxDeferred))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BaseDelay < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("retry.base_delay must be >= 100ms, got %s", c.Retry.BaseDelay))
	}
	if c.Retry.MaxQueue < 1 {
		errs = append(errs, fmt.Errorf("retry.max_queue must be >= 1, got %d", c.Retry.MaxQueue))
	}

	return errors.Join(errs...)
}
