package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"icabatch/internal/batch"
	"icabatch/internal/health"
)

// Handler serves the status endpoints.
type Handler struct {
	scheduler *batch.Scheduler
	checker   *health.Checker
}

// NewHandler creates a status handler.
func NewHandler(scheduler *batch.Scheduler, checker *health.Checker) *Handler {
	return &Handler{scheduler: scheduler, checker: checker}
}

// Livez handles the liveness probe.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	resp := h.checker.Liveness(r.Context())
	writeJSON(w, http.StatusOK, resp)
}

// Readyz handles the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := h.checker.Readiness(r.Context())
	status := http.StatusOK
	if !resp.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// batchView is the batch summary document.
type batchView struct {
	BatchID string              `json:"batch_id"`
	Total   int                 `json:"total_samples"`
	Active  int                 `json:"active"`
	Counts  map[batch.State]int `json:"counts"`
	Jobs    []jobView           `json:"jobs"`
}

// jobView is one job's progress.
type jobView struct {
	SampleID   string              `json:"sample_id"`
	Pipeline   string              `json:"pipeline"`
	State      batch.State         `json:"state"`
	AnalysisID string              `json:"analysis_id,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	Attempts   map[batch.Stage]int `json:"attempts,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

func toJobView(rec batch.Record) jobView {
	view := jobView{
		SampleID:   rec.Sample.SampleID,
		Pipeline:   rec.Sample.Pipeline,
		State:      rec.State,
		AnalysisID: rec.AnalysisID,
		Detail:     rec.Detail,
		Attempts:   rec.Attempts,
	}
	if !rec.StartedAt.IsZero() {
		view.StartedAt = &rec.StartedAt
	}
	if !rec.FinishedAt.IsZero() {
		view.FinishedAt = &rec.FinishedAt
	}
	return view
}

// GetBatch returns the batch summary with every job's current state.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	snapshot := h.scheduler.Tracker().Snapshot()

	view := batchView{
		BatchID: h.scheduler.BatchID(),
		Total:   len(snapshot),
		Counts:  make(map[batch.State]int),
		Jobs:    make([]jobView, 0, len(snapshot)),
	}
	for _, rec := range snapshot {
		view.Counts[rec.State]++
		if rec.State.Active() {
			view.Active++
		}
		view.Jobs = append(view.Jobs, toJobView(rec))
	}
	writeJSON(w, http.StatusOK, view)
}

// GetJob returns one job's progress.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	sampleID := r.PathValue("sampleId")
	rec, ok := h.scheduler.Tracker().Get(sampleID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found: "+sampleID)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(rec))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
