package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"icabatch/internal/notify"
	"icabatch/internal/platform"
)

// AnalysisPoller is the slice of the platform client the watcher needs.
type AnalysisPoller interface {
	Poll(ctx context.Context, analysisID string) (platform.Status, error)
}

// WatchAnalysis follows one analysis until it reaches a terminal status and
// sends a completion or error notification. Poll failures are reported as
// alerts and polling continues; only ctx cancellation stops the watch early.
func WatchAnalysis(ctx context.Context, poller AnalysisPoller, notifier notify.Notifier, analysisID string, interval time.Duration) (platform.Status, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	if notifier == nil {
		notifier = notify.LogOnly{}
	}
	logger := slog.With("component", "monitor", "analysis", analysisID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := poller.Poll(ctx, analysisID)
		switch {
		case err != nil && ctx.Err() != nil:
			return platform.Status{}, ctx.Err()
		case err != nil:
			logger.Warn("Poll failed", "error", err)
			notifyEvent(ctx, notifier, logger, notify.Event{
				Kind:   notify.KindAlert,
				Detail: fmt.Sprintf("polling analysis %s failed: %v", analysisID, err),
				Time:   time.Now(),
			})
		case status.Terminal():
			logger.Info("Analysis finished", "state", status.State, "detail", status.Detail)
			kind := notify.KindComplete
			if status.State == platform.StateFailed {
				kind = notify.KindError
			}
			notifyEvent(ctx, notifier, logger, notify.Event{
				Kind:   kind,
				State:  string(status.State),
				Detail: fmt.Sprintf("analysis %s: %s", analysisID, status.Detail),
				Time:   time.Now(),
			})
			return status, nil
		default:
			logger.Info("Analysis in progress", "state", status.Detail)
		}

		select {
		case <-ctx.Done():
			return platform.Status{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func notifyEvent(ctx context.Context, notifier notify.Notifier, logger *slog.Logger, event notify.Event) {
	if err := notifier.Notify(ctx, event); err != nil {
		logger.Warn("Notification failed", "kind", event.Kind, "error", err)
	}
}
