package batch

import (
	"fmt"
	"sync"
	"time"

	"icabatch/internal/apperrors"
	"icabatch/internal/manifest"
)

// Record is the tracked progress of one job. The tracker owns all records;
// callers only ever see copies.
type Record struct {
	Sample      manifest.Sample `json:"sample"`
	State       State           `json:"state"`
	AnalysisID  string          `json:"analysis_id,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	Attempts    map[Stage]int   `json:"attempts,omitempty"`
	Transitions []Transition    `json:"transitions,omitempty"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
}

// Duration is the wall-clock time from first activity to the terminal
// transition, zero while the job is still pending or in flight.
func (r *Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Record) clone() Record {
	out := *r
	out.Attempts = make(map[Stage]int, len(r.Attempts))
	for k, v := range r.Attempts {
		out.Attempts[k] = v
	}
	out.Transitions = append([]Transition(nil), r.Transitions...)
	return out
}

// Tracker is the single source of truth for job progress. Each transition is
// atomic with respect to Snapshot: a snapshot never observes a job mid-update.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string // manifest order, for stable reporting
}

// NewTracker creates a tracker with one Pending record per sample.
// Sample IDs are assumed unique (enforced by manifest validation).
func NewTracker(samples []manifest.Sample) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record, len(samples)),
		order:   make([]string, 0, len(samples)),
	}
	for _, s := range samples {
		t.records[s.SampleID] = &Record{
			Sample:   s,
			State:    StatePending,
			Attempts: make(map[Stage]int),
		}
		t.order = append(t.order, s.SampleID)
	}
	return t
}

// Transition moves a job to the next state, enforcing the state machine.
// A rejected transition indicates a scheduler bug, not a job failure.
func (t *Tracker) Transition(sampleID string, next State, detail string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[sampleID]
	if !ok {
		return apperrors.InvalidTransition(fmt.Sprintf("unknown job %s", sampleID))
	}
	if !canTransition(rec.State, next) {
		return apperrors.InvalidTransition(
			fmt.Sprintf("job %s: illegal transition %s -> %s", sampleID, rec.State, next))
	}

	now := time.Now()
	rec.State = next
	rec.Transitions = append(rec.Transitions, Transition{State: next, Time: now, Detail: detail})
	if detail != "" {
		rec.Detail = detail
	}
	if next == StateUploading && rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if next.Terminal() {
		rec.FinishedAt = now
	}
	return nil
}

// SetAnalysisID stores the platform analysis identifier once assigned.
func (t *Tracker) SetAnalysisID(sampleID, analysisID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[sampleID]; ok {
		rec.AnalysisID = analysisID
	}
}

// RecordAttempt counts one attempt of a stage and returns the new total.
func (t *Tracker) RecordAttempt(sampleID string, stage Stage) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[sampleID]
	if !ok {
		return 0
	}
	rec.Attempts[stage]++
	return rec.Attempts[stage]
}

// Get returns a copy of one job's record.
func (t *Tracker) Get(sampleID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[sampleID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// State returns the current state of a job.
func (t *Tracker) State(sampleID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[sampleID]; ok {
		return rec.State
	}
	return ""
}

// Snapshot returns a consistent point-in-time copy of all records in
// manifest order.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.records[id].clone())
	}
	return out
}

// ActiveCount returns the number of jobs currently in an active stage.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, rec := range t.records {
		if rec.State.Active() {
			n++
		}
	}
	return n
}

// AllTerminal reports whether every job has reached a terminal state.
func (t *Tracker) AllTerminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range t.records {
		if !rec.State.Terminal() {
			return false
		}
	}
	return true
}

// Summarize produces the batch result once all jobs are terminal.
func (t *Tracker) Summarize() (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{
		Counts: make(map[State]int),
	}
	for _, id := range t.order {
		rec := t.records[id]
		if !rec.State.Terminal() {
			return nil, apperrors.InvalidTransition(
				fmt.Sprintf("summarize before job %s reached a terminal state (%s)", id, rec.State))
		}
		res.Jobs = append(res.Jobs, rec.clone())
		res.Counts[rec.State]++
	}
	return res, nil
}
