// Package batch drives a manifest of samples through the
// upload -> launch -> poll -> download lifecycle on the ICA platform, with
// bounded concurrency, per-stage retry, timeouts, and notifications.
package batch

import "time"

// State is the lifecycle state of one job.
type State string

const (
	StatePending     State = "Pending"
	StateUploading   State = "Uploading"
	StateLaunching   State = "Launching"
	StateRunning     State = "Running"
	StateDownloading State = "Downloading"
	StateCompleted   State = "Completed"
	StateFailed      State = "Failed"
	StateTimedOut    State = "TimedOut"
	StateCancelled   State = "Cancelled"
)

// forward is the only allowed forward progression; any non-terminal state may
// additionally divert to Failed, TimedOut, or Cancelled.
var forward = map[State]State{
	StatePending:     StateUploading,
	StateUploading:   StateLaunching,
	StateLaunching:   StateRunning,
	StateRunning:     StateDownloading,
	StateDownloading: StateCompleted,
}

// Terminal reports whether no further transitions may occur.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Active reports whether the job occupies a concurrency slot.
func (s State) Active() bool {
	switch s {
	case StateUploading, StateLaunching, StateRunning, StateDownloading:
		return true
	}
	return false
}

// canTransition reports whether moving from to next is legal.
func canTransition(from, next State) bool {
	if from.Terminal() {
		return false
	}
	if next == StateFailed || next == StateTimedOut || next == StateCancelled {
		return true
	}
	return forward[from] == next
}

// Stage names the four lifecycle steps for attempt accounting.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageLaunch   Stage = "launch"
	StagePoll     Stage = "poll"
	StageDownload Stage = "download"
)

// Transition is one recorded state change.
type Transition struct {
	State  State     `json:"state"`
	Time   time.Time `json:"time"`
	Detail string    `json:"detail,omitempty"`
}
