// Package cmd implements the icabatch command line interface.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrBatchFailed signals that the batch finished but at least one job did
// not complete. It maps to a non-zero process exit without an extra error
// line, the report already tells the story.
var ErrBatchFailed = errors.New("batch finished with failed jobs")

var rootCmd = &cobra.Command{
	Use:   "icabatch",
	Short: "Batch sequencing analysis on the ICA platform",
	Long: `icabatch drives batches of sequencing samples through the ICA platform:
it uploads sample data, launches DRAGEN pipeline analyses, polls them to
completion, and downloads the results.

Platform access is configured through ICA_* environment variables
(ICA_API_KEY, ICA_PROJECT, ICA_TRANSPORT).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the error to map to the exit status.
func Execute() error {
	return rootCmd.Execute()
}

var rootFlags struct {
	project   string
	transport string
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.project, "project", "", "ICA project name or ID (overrides ICA_PROJECT)")
	pf.StringVar(&rootFlags.transport, "transport", "", "platform transport: api or cli (overrides ICA_TRANSPORT)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(cleanupCmd)
}
