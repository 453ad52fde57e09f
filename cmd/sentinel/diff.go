package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/baikal/sentinel/internal/reportdiff"
)

func newDiffCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "diff <before.jsonl> <after.jsonl>",
		Short: "Compare two insight-log exports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], outputPath, cmd)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output path for a JSON diff (- for the human-readable form on stdout)")
	return cmd
}

func runDiff(beforePath, afterPath, outputPath string, cmd *cobra.Command) error {
	beforeFile, err := os.Open(beforePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", beforePath, err)
	}
	defer beforeFile.Close()
	before, err := reportdiff.Load(beforeFile)
	if err != nil {
		return fmt.Errorf("parse %s: %w", beforePath, err)
	}

	afterFile, err := os.Open(afterPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", afterPath, err)
	}
	defer afterFile.Close()
	after, err := reportdiff.Load(afterFile)
	if err != nil {
		return fmt.Errorf("parse %s: %w", afterPath, err)
	}

	result := reportdiff.Diff(before, after)

	if outputPath == "-" {
		fmt.Fprint(cmd.OutOrStdout(), reportdiff.Format(result))
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}
