// Package monitor watches project storage and spend and raises alerts when
// configured thresholds are crossed. Alerts fire once per crossing, not on
// every check.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"icabatch/internal/config"
	"icabatch/internal/notify"
	"icabatch/internal/platform"
)

// Config holds monitor settings.
type Config struct {
	Interval       time.Duration // check cadence (default: 15m)
	StoragePercent float64       // alert when storage use crosses this percentage; 0 disables
	CostLimit      float64       // alert when total cost crosses this amount; 0 disables
}

// LoadConfig loads monitor configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Interval:       config.GetDurationEnv("MONITOR_INTERVAL", 15*time.Minute),
		StoragePercent: config.GetFloatEnv("MONITOR_STORAGE_THRESHOLD", 80),
		CostLimit:      config.GetFloatEnv("MONITOR_COST_LIMIT", 0),
	}
}

// Monitor periodically samples project usage and notifies on threshold
// crossings.
type Monitor struct {
	cfg      Config
	usage    platform.UsageReporter
	notifier notify.Notifier
	logger   *slog.Logger

	storageAlerted bool
	costAlerted    bool
}

// New creates a monitor. notifier may be nil.
func New(cfg Config, usage platform.UsageReporter, notifier notify.Notifier) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if notifier == nil {
		notifier = notify.LogOnly{}
	}
	return &Monitor{
		cfg:      cfg,
		usage:    usage,
		notifier: notifier,
		logger:   slog.With("component", "monitor"),
	}
}

// Run checks immediately, then on every interval tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check samples usage once. Sampling failures are logged, never fatal.
func (m *Monitor) Check(ctx context.Context) {
	if m.cfg.StoragePercent > 0 {
		m.checkStorage(ctx)
	}
	if m.cfg.CostLimit > 0 {
		m.checkCosts(ctx)
	}
}

func (m *Monitor) checkStorage(ctx context.Context) {
	usage, err := m.usage.Storage(ctx)
	if err != nil {
		m.logger.Warn("Storage check failed", "error", err)
		return
	}

	percent := usage.Percent()
	m.logger.Info("Storage usage", "usedGB", usage.UsedGB, "totalGB", usage.TotalGB, "percent", percent)

	over := percent >= m.cfg.StoragePercent
	if over && !m.storageAlerted {
		m.storageAlerted = true
		m.alert(ctx, fmt.Sprintf("project storage at %.1f%% (%.1f of %.1f GB), threshold %.0f%%",
			percent, usage.UsedGB, usage.TotalGB, m.cfg.StoragePercent))
	} else if !over {
		m.storageAlerted = false
	}
}

func (m *Monitor) checkCosts(ctx context.Context) {
	costs, err := m.usage.Costs(ctx)
	if err != nil {
		m.logger.Warn("Cost check failed", "error", err)
		return
	}

	m.logger.Info("Project costs", "total", costs.TotalCost, "currency", costs.Currency)

	over := costs.TotalCost >= m.cfg.CostLimit
	if over && !m.costAlerted {
		m.costAlerted = true
		m.alert(ctx, fmt.Sprintf("project spend at %.2f %s, limit %.2f",
			costs.TotalCost, costs.Currency, m.cfg.CostLimit))
	} else if !over {
		m.costAlerted = false
	}
}

func (m *Monitor) alert(ctx context.Context, detail string) {
	err := m.notifier.Notify(ctx, notify.Event{
		Kind:   notify.KindAlert,
		Detail: detail,
		Time:   time.Now(),
	})
	if err != nil {
		m.logger.Warn("Alert delivery failed", "error", err)
	}
}
