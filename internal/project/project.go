// Package project provides project data housekeeping: listing the data
// inventory and deleting stale entries after a batch has been archived.
package project

import (
	"context"
	"log/slog"
	"time"

	"icabatch/internal/platform"
)

// CleanupOptions selects which data entries to remove.
type CleanupOptions struct {
	Pattern   string        // name filter passed to the platform; empty matches all
	OlderThan time.Duration // only entries created at least this long ago; 0 matches all
	DryRun    bool          // report what would be deleted without deleting
}

// CleanupReport summarizes one cleanup run.
type CleanupReport struct {
	Matched int      // entries matching pattern and age
	Deleted []string // names actually removed (empty on dry runs)
	Failed  []string // names whose deletion failed
}

// Manager performs data housekeeping against one project.
type Manager struct {
	data   platform.DataManager
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a project data manager.
func NewManager(data platform.DataManager) *Manager {
	return &Manager{
		data:   data,
		logger: slog.With("component", "project"),
		now:    time.Now,
	}
}

// List returns the project data entries matching pattern.
func (m *Manager) List(ctx context.Context, pattern string) ([]platform.DataItem, error) {
	return m.data.ListData(ctx, pattern)
}

// Cleanup deletes matching entries. Individual deletion failures are
// collected and do not stop the run; listing failures do.
func (m *Manager) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupReport, error) {
	items, err := m.data.ListData(ctx, opts.Pattern)
	if err != nil {
		return CleanupReport{}, err
	}

	cutoff := time.Time{}
	if opts.OlderThan > 0 {
		cutoff = m.now().Add(-opts.OlderThan)
	}

	var report CleanupReport
	for _, item := range items {
		if !cutoff.IsZero() && item.Created.After(cutoff) {
			continue
		}
		report.Matched++

		if opts.DryRun {
			m.logger.Info("Would delete", "name", item.Name, "type", item.Type, "size", item.Size)
			continue
		}
		if err := m.data.DeleteData(ctx, item.Name); err != nil {
			m.logger.Warn("Delete failed", "name", item.Name, "error", err)
			report.Failed = append(report.Failed, item.Name)
			continue
		}
		m.logger.Info("Deleted", "name", item.Name, "size", item.Size)
		report.Deleted = append(report.Deleted, item.Name)
	}
	return report, nil
}
