package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icabatch/internal/project"
)

var cleanupFlags struct {
	pattern   string
	olderThan time.Duration
	dryRun    bool
	list      bool
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stale data from the project",
	Long: `cleanup removes project data entries matching a name pattern and minimum
age. Use --dry-run to see what would be deleted, or --list to inspect the
inventory without deleting anything.`,
	RunE: runCleanup,
}

func init() {
	f := cleanupCmd.Flags()
	f.StringVar(&cleanupFlags.pattern, "pattern", "", "only entries whose name matches this pattern")
	f.DurationVar(&cleanupFlags.olderThan, "older-than", 0, "only entries at least this old (e.g. 720h)")
	f.BoolVar(&cleanupFlags.dryRun, "dry-run", false, "report matches without deleting")
	f.BoolVar(&cleanupFlags.list, "list", false, "list matching entries and exit")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(platformConfig())
	if err != nil {
		return err
	}
	mgr := project.NewManager(backend)

	if cleanupFlags.list {
		items, err := mgr.List(ctx, cleanupFlags.pattern)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-12s %-20s %s\n",
				item.Type, item.Size, item.Created.Format(time.DateOnly), item.Name)
		}
		return nil
	}

	report, err := mgr.Cleanup(ctx, project.CleanupOptions{
		Pattern:   cleanupFlags.pattern,
		OlderThan: cleanupFlags.olderThan,
		DryRun:    cleanupFlags.dryRun,
	})
	if err != nil {
		return err
	}

	if cleanupFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d entries would be deleted\n", report.Matched)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d matching entries\n", len(report.Deleted), report.Matched)
	if len(report.Failed) > 0 {
		return fmt.Errorf("failed to delete %d entries: %v", len(report.Failed), report.Failed)
	}
	return nil
}
