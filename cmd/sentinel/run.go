package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baikal/sentinel/internal/alert"
	"github.com/baikal/sentinel/internal/config"
	"github.com/baikal/sentinel/internal/llm"
	"github.com/baikal/sentinel/internal/logsource"
	"github.com/baikal/sentinel/internal/mcpsurface"
	"github.com/baikal/sentinel/internal/metricsource"
	"github.com/baikal/sentinel/internal/notify"
	"github.com/baikal/sentinel/internal/orchestrator"
	"github.com/baikal/sentinel/internal/telemetry"
)

// logStreamCommand wraps the unified log stream, ndjson-framed so
// logsource can parse one record per line.
var logStreamCommand = logsource.Command{
	Name: "log",
	Args: func(filter string) []string {
		return []string{"stream", "--style", "ndjson", "--predicate", filter}
	},
}

// metricSourceCommand samples power and memory metrics. metricbridge
// is an external wrapper (not part of this repo, per §6) that shells
// out to powermetrics and reshapes its plist output into the JSON
// record metricsource expects.
var metricSourceCommand = metricsource.Command{
	Name: "metricbridge",
	Args: []string{"--format", "json", "--once"},
}

// metricSourceFallback is a coarser sampler used when metricbridge (or
// the powermetrics capability it depends on) isn't usable on this host.
var metricSourceFallback = metricsource.Command{
	Name: "metricbridge",
	Args: []string{"--format", "json", "--once", "--tier", "fallback"},
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the telemetry observer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(configPath, logLevel, pretty, false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (defaults applied for any unset field)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Use human-readable console logging instead of JSON")

	return cmd
}

// runPipeline loads configuration, wires the collectors/backend/notifier,
// and runs the orchestrator until the process receives SIGINT/SIGTERM.
// forceMCP overrides cfg.MCP.Enabled, used by the `mcp` subcommand which
// always needs the read-only tool surface regardless of the config file.
func runPipeline(configPath, logLevel string, pretty, forceMCP bool) error {
	cfg := config.Default()
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		cfg, err = config.Load(f)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}
	if forceMCP {
		cfg.MCP.Enabled = true
	}

	log := telemetry.Configure(telemetry.Options{Level: logLevel, Pretty: pretty})

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	notifier := buildNotifier()

	probe := func() bool {
		_, err := os.Stat("/usr/bin/powermetrics")
		return err == nil
	}

	logCollector := logsource.New(logStreamCommand, cfg.Logging.Filter, func() {
		log.Warn().Msg("log collector entered degraded mode")
	}, log)

	metricCollector := metricsource.New(metricSourceCommand, metricSourceFallback, probe, cfg.Metrics.Interval, func() {
		log.Warn().Msg("metric collector fell back to coarser source")
	}, log)

	orch := orchestrator.New(cfg, orchestrator.Components{
		LogCollector:    logCollector,
		MetricCollector: metricCollector,
		Backend:         backend,
		Notifier:        notifier,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MCP.Enabled {
		history := mcpsurface.NewInsightHistory(50)
		orch.SetInsightSink(history.Record)
		srv := mcpsurface.New(version, orch.Aggregator(), history, int(cfg.Buffer.MaxAge.Seconds()))
		go func() {
			if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("MCP surface exited")
			}
		}()
	}

	log.Info().Str("ai_backend", cfg.AI.Backend).Msg("sentinel starting")
	orch.Run(ctx)
	log.Info().Msg("sentinel stopped")
	return nil
}

func buildBackend(cfg config.Config) (llm.Backend, error) {
	switch cfg.AI.Backend {
	case "local":
		return llm.NewLocalHTTP(cfg.AI.Endpoint, cfg.AI.Model), nil
	case "remote":
		return llm.NewRemoteHTTP(cfg.AI.Endpoint, cfg.AI.Model, cfg.AI.Credential), nil
	case "mock":
		return &llm.Mock{Results: []llm.MockResult{{}}}, nil
	default:
		return nil, fmt.Errorf("unrecognized ai.backend %q", cfg.AI.Backend)
	}
}

func buildNotifier() alert.Notifier {
	if _, err := os.Stat("/usr/bin/osascript"); err == nil {
		return notify.NewCommandNotifier("osascript", func(title, body string) []string {
			script := fmt.Sprintf("display notification %q with title %q", body, title)
			return []string{"-e", script}
		})
	}
	return notify.NoOp{}
}
