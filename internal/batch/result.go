package batch

import (
	"encoding/json"
	"os"
	"time"
)

// Result is the immutable outcome of one batch run.
type Result struct {
	BatchID    string        `json:"batch_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Jobs       []Record      `json:"jobs"`
	Counts     map[State]int `json:"counts"`
}

// Failed reports whether any job ended in a non-Completed terminal state.
// It drives the process exit status.
func (r *Result) Failed() bool {
	return r.Counts[StateFailed] > 0 || r.Counts[StateTimedOut] > 0 || r.Counts[StateCancelled] > 0
}

// summaryJob is the per-job line of the machine-readable report.
type summaryJob struct {
	SampleID        string  `json:"sample_id"`
	State           State   `json:"state"`
	AnalysisID      string  `json:"analysis_id,omitempty"`
	Detail          string  `json:"detail,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// summary is the report document written by WriteReport.
type summary struct {
	BatchID    string        `json:"batch_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Total      int           `json:"total_samples"`
	Counts     map[State]int `json:"counts"`
	Jobs       []summaryJob  `json:"jobs"`
}

// WriteReport writes the summary report as indented JSON.
func (r *Result) WriteReport(path string) error {
	doc := summary{
		BatchID:    r.BatchID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      len(r.Jobs),
		Counts:     r.Counts,
	}
	for _, job := range r.Jobs {
		doc.Jobs = append(doc.Jobs, summaryJob{
			SampleID:        job.Sample.SampleID,
			State:           job.State,
			AnalysisID:      job.AnalysisID,
			Detail:          job.Detail,
			DurationSeconds: job.Duration().Seconds(),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
