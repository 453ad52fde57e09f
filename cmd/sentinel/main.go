// sentinel — host-resident OS telemetry observer.
//
// Ingests the unified log stream and power/resource metrics, evaluates
// heuristic trigger rules over a bounded rolling window, and on a
// positive trigger asks a pluggable LLM backend for an analysis,
// delivering the result as a rate-limited desktop notification.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Host telemetry observer with LLM-assisted triage",
		Long: `sentinel watches the system log stream and resource metrics for
signs of trouble, evaluates a small set of heuristic rules over a
bounded rolling window, and when one fires it asks a configured LLM
backend to explain what's happening and what to do about it. The
result is delivered as a rate-limited desktop notification.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newMCPCmd(),
		newCapabilitiesCmd(),
		newDiffCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sentinel version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
