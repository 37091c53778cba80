package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/mosaicnetworks/peerfetch/src/network"
	"github.com/mosaicnetworks/peerfetch/src/peerfetch"
	"github.com/spf13/cobra"
)

func (c *cli) newStatusCmd() *cobra.Command {
	var processStatus string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of the local validator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(func(ctx context.Context, engine *peerfetch.PeerFetch) error {
				report, err := engine.Status(ctx, processStatus)
				if err != nil {
					return err
				}

				header := color.New(color.FgGreen, color.Bold)
				if !report.Running() {
					header = color.New(color.FgYellow, color.Bold)
				}
				header.Fprintf(cmd.OutOrStdout(), "Validator %s\n", report.ProcessStatus)

				return printJSON(cmd, report)
			})
		},
	}

	cmd.Flags().StringVar(&processStatus, "process-status", "running",
		fmt.Sprintf("Process status of the local node (%q skips the local queries)", network.StoppedStatus))

	return cmd
}
