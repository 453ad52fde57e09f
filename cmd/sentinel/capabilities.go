package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baikal/sentinel/internal/ebpfcap"
)

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Report host capabilities relevant to the metric source",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := ebpfcap.Detect()
			fmt.Fprint(cmd.OutOrStdout(), ebpfcap.Format(r))
			return nil
		},
	}
}
