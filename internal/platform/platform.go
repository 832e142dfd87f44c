// Package platform defines the contract for the ICA platform backends.
// The api and cli subpackages implement it over REST and the vendor CLI.
package platform

import (
	"context"
	"time"
)

// State is the platform-reported state of an analysis.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is the result of polling an analysis.
type Status struct {
	State  State
	Detail string // platform status text or failure reason
}

// Terminal reports whether the analysis has finished on the platform side.
func (s Status) Terminal() bool {
	return s.State == StateSucceeded || s.State == StateFailed
}

// StatusFrom folds the platform's analysis status vocabulary into the three
// states the scheduler acts on. Unknown codes count as still running.
func StatusFrom(code, summary string) Status {
	switch code {
	case "SUCCEEDED":
		return Status{State: StateSucceeded, Detail: summary}
	case "FAILED", "FAILED_FINAL", "ABORTED", "ABORTING":
		if summary == "" {
			summary = "analysis ended with status " + code
		}
		return Status{State: StateFailed, Detail: summary}
	default:
		// REQUESTED, QUEUED, INITIALIZING, PREPARING_INPUTS, INPROGRESS,
		// GENERATING_OUTPUTS and anything the platform adds later.
		return Status{State: StateRunning, Detail: code}
	}
}

// LaunchSpec describes a pipeline analysis to start.
type LaunchSpec struct {
	Pipeline      string         // pipeline name or ID (e.g. dragen-germline)
	Reference     string         // reference genome identifier
	UserReference string         // analysis name shown in the platform UI
	DataRef       string         // data reference returned by Upload
	Params        map[string]any // fully resolved pipeline parameters
}

// Client is the narrow surface the batch scheduler drives.
//
// Implementations map their failures onto the apperrors taxonomy so the
// scheduler can decide retryability without knowing the transport.
type Client interface {
	// Upload transfers a local folder into the project and returns the
	// platform data reference for it.
	Upload(ctx context.Context, folder, name string) (string, error)

	// Launch starts a pipeline analysis and returns its analysis ID.
	Launch(ctx context.Context, spec LaunchSpec) (string, error)

	// Poll returns the current status of an analysis.
	Poll(ctx context.Context, analysisID string) (Status, error)

	// Download fetches the analysis output folder into dest.
	Download(ctx context.Context, analysisID, dest string) error

	// Ready checks that the platform is reachable and credentials work.
	Ready(ctx context.Context) error
}

// DataItem is one entry in a project's data inventory.
type DataItem struct {
	ID      string
	Name    string
	Type    string // FILE or FOLDER
	Size    string
	Created time.Time
}

// DataManager is the surface the project cleanup tooling drives.
type DataManager interface {
	ListData(ctx context.Context, pattern string) ([]DataItem, error)
	DeleteData(ctx context.Context, name string) error
}

// StorageUsage is the project's storage consumption.
type StorageUsage struct {
	UsedGB  float64
	TotalGB float64
}

// Percent returns the used fraction as a percentage, 0 if total is unknown.
func (u StorageUsage) Percent() float64 {
	if u.TotalGB <= 0 {
		return 0
	}
	return u.UsedGB / u.TotalGB * 100
}

// CostReport is the project's accumulated cost.
type CostReport struct {
	TotalCost float64
	Currency  string
}

// UsageReporter is the surface the storage/cost monitors drive.
type UsageReporter interface {
	Storage(ctx context.Context) (StorageUsage, error)
	Costs(ctx context.Context) (CostReport, error)
}
