package main

import (
	"github.com/spf13/cobra"
)

// newMCPCmd runs the full pipeline with the read-only MCP tool surface
// forced on, so an agent (Claude Desktop, Cursor, etc.) attached over
// stdio can inspect the live rolling window and recent insights while
// sentinel observes the host. Communication with the agent happens
// over stdio; sentinel's own logs go to stderr (telemetry's default).
func newMCPCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the observer with the MCP tool surface exposed over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(configPath, logLevel, false, true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (defaults applied for any unset field)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}
