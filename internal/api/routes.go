// Package api serves the read-only status endpoints of a running batch:
// health probes, the batch summary, and per-job progress.
package api

import (
	"net/http"

	"icabatch/internal/batch"
	"icabatch/internal/health"
	"icabatch/internal/observability"
)

// RouterConfig holds dependencies for the status router.
type RouterConfig struct {
	Scheduler     *batch.Scheduler
	HealthChecker *health.Checker
	Metrics       *observability.Metrics
}

// NewRouter creates the status server handler.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Scheduler, cfg.HealthChecker)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	mux.HandleFunc("GET /v1/batch", handler.GetBatch)
	mux.HandleFunc("GET /v1/batch/jobs/{sampleId}", handler.GetJob)

	var h http.Handler = mux
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)
	return h
}
