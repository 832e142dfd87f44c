package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icabatch/internal/api"
	"icabatch/internal/batch"
	"icabatch/internal/config"
	"icabatch/internal/health"
	"icabatch/internal/manifest"
	"icabatch/internal/observability"
)

var runFlags struct {
	manifest      string
	report        string
	notifyConfig  string
	outputDir     string
	notifyOn      string
	maxConcurrent int
	maxRetries    int
	stageTimeout  time.Duration
	pollInterval  time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run [sample-sheet]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Run a batch of samples through upload, analysis, and download",
	Long: `run reads a sample manifest (CSV or YAML), uploads each sample's data
folder, launches the configured DRAGEN pipeline per sample, polls the
analyses to completion, and downloads results.

The process exits non-zero when any job ends Failed, TimedOut, or
Cancelled. Flags override the BATCH_* environment variables.`,
	RunE: runBatch,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.manifest, "manifest", "m", "", "sample manifest file (.csv or .yaml)")
	f.StringVar(&runFlags.report, "report", "", "write a JSON batch report to this path")
	f.StringVar(&runFlags.notifyConfig, "notify-config", "", "notification destinations file (YAML)")
	f.StringVar(&runFlags.outputDir, "output-dir", "", "destination root for downloaded results")
	f.StringVar(&runFlags.notifyOn, "notify-on", "", "checkpoints to notify on (start,complete,error)")
	f.IntVar(&runFlags.maxConcurrent, "max-concurrent", 0, "maximum jobs in flight")
	f.IntVar(&runFlags.maxRetries, "max-retries", -1, "retries per transient stage failure")
	f.DurationVar(&runFlags.stageTimeout, "stage-timeout", 0, "per-stage deadline (poll timeout marks the job TimedOut)")
	f.DurationVar(&runFlags.pollInterval, "poll-interval", 0, "analysis poll cadence")
}

// batchConfig merges the environment configuration with flag overrides.
func batchConfig(cmd *cobra.Command) batch.Config {
	cfg := batch.LoadConfig()
	if cmd.Flags().Changed("max-concurrent") {
		cfg.MaxConcurrent = runFlags.maxConcurrent
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = runFlags.maxRetries
	}
	if cmd.Flags().Changed("stage-timeout") {
		cfg.StageTimeout = runFlags.stageTimeout
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = runFlags.pollInterval
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = runFlags.outputDir
	}
	if cmd.Flags().Changed("notify-on") {
		cfg.NotifyOn = batch.ParseNotifyOn(runFlags.notifyOn)
	}
	return cfg
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manifestPath := runFlags.manifest
	if len(args) == 1 {
		manifestPath = args[0]
	}
	if manifestPath == "" {
		return errors.New("a sample sheet is required (positional argument or --manifest)")
	}

	samples, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	backend, err := newBackend(platformConfig())
	if err != nil {
		return err
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	notifier, dispatcher, err := buildNotifier(runFlags.notifyConfig, metrics)
	if err != nil {
		return err
	}

	scheduler := batch.New(batchConfig(cmd), samples, backend, notifier, metrics)
	checker := health.NewChecker(backend)

	svcCfg := config.LoadServiceConfig()
	stopServers := startServers(svcCfg, metricsHandler, api.NewRouter(api.RouterConfig{
		Scheduler:     scheduler,
		HealthChecker: checker,
		Metrics:       metrics,
	}))

	slog.Info("Batch starting", "manifest", manifestPath, "samples", len(samples), "batch", scheduler.BatchID())

	res, runErr := scheduler.Run(ctx)

	checker.SetShuttingDown()
	if dispatcher != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := dispatcher.Close(drainCtx); err != nil {
			slog.Warn("Notification dispatcher shutdown error", "error", err)
		}
		cancel()
	}
	stopServers()

	if runErr != nil {
		return runErr
	}
	if runFlags.report != "" {
		if err := res.WriteReport(runFlags.report); err != nil {
			slog.Error("Failed to write report", "path", runFlags.report, "error", err)
		} else {
			slog.Info("Report written", "path", runFlags.report)
		}
	}
	if res.Failed() {
		return ErrBatchFailed
	}
	return nil
}

// startServers starts the metrics endpoint and, when enabled, the status
// server. The returned function shuts both down.
func startServers(cfg *config.ServiceConfig, metricsHandler, statusHandler http.Handler) func() {
	var servers []*http.Server

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	servers = append(servers, serve("metrics", ":"+cfg.MetricsPort, metricsMux))

	if cfg.StatusPort != "0" {
		servers = append(servers, serve("status", ":"+cfg.StatusPort, statusHandler))
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server shutdown error", "addr", srv.Addr, "error", err)
			}
		}
	}
}

func serve(name, addr string, handler http.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		slog.Info("Server listening", "server", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "server", name, "error", err)
		}
	}()
	return srv
}
