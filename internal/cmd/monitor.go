package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icabatch/internal/monitor"
	"icabatch/internal/observability"
	"icabatch/internal/platform"
)

var monitorFlags struct {
	analysisID       string
	interval         time.Duration
	storageThreshold float64
	costLimit        float64
	notifyConfig     string
	once             bool
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch project storage and spend, alerting on thresholds",
	Long: `monitor periodically samples the project's storage usage and accumulated
cost and sends an alert notification when a threshold is crossed. Each
threshold alerts once per crossing.

With --analysis-id it instead follows a single analysis to completion,
notifying on success, failure, or poll errors.`,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVar(&monitorFlags.analysisID, "analysis-id", "", "follow one analysis to completion instead of watching usage")
	f.DurationVar(&monitorFlags.interval, "interval", 0, "check cadence")
	f.Float64Var(&monitorFlags.storageThreshold, "storage-threshold", 0, "alert when storage use crosses this percentage")
	f.Float64Var(&monitorFlags.costLimit, "cost-limit", 0, "alert when project spend crosses this amount")
	f.StringVar(&monitorFlags.notifyConfig, "notify-config", "", "notification destinations file (YAML)")
	f.BoolVar(&monitorFlags.once, "once", false, "check once and exit")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(platformConfig())
	if err != nil {
		return err
	}

	metrics, _, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}
	notifier, dispatcher, err := buildNotifier(monitorFlags.notifyConfig, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if dispatcher != nil {
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := dispatcher.Close(drainCtx); err != nil {
				slog.Warn("Notification dispatcher shutdown error", "error", err)
			}
		}
	}()

	cfg := monitor.LoadConfig()
	if cmd.Flags().Changed("interval") {
		cfg.Interval = monitorFlags.interval
	}
	if monitorFlags.analysisID != "" {
		status, err := monitor.WatchAnalysis(ctx, backend, notifier, monitorFlags.analysisID, cfg.Interval)
		if err != nil {
			return err
		}
		if status.State == platform.StateFailed {
			return fmt.Errorf("analysis %s failed: %s", monitorFlags.analysisID, status.Detail)
		}
		return nil
	}
	if cmd.Flags().Changed("storage-threshold") {
		cfg.StoragePercent = monitorFlags.storageThreshold
	}
	if cmd.Flags().Changed("cost-limit") {
		cfg.CostLimit = monitorFlags.costLimit
	}

	m := monitor.New(cfg, backend, notifier)
	if monitorFlags.once {
		m.Check(ctx)
		return nil
	}

	slog.Info("Monitor starting", "interval", cfg.Interval,
		"storageThreshold", cfg.StoragePercent, "costLimit", cfg.CostLimit)
	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
