package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"icabatch/internal/apperrors"
	"icabatch/internal/manifest"
	"icabatch/internal/notify"
	"icabatch/internal/platform"
	"icabatch/pkg/backoff"
)

// errPollTimeout marks a poll stage that outlived the stage timeout.
// A stuck remote analysis is not assumed transient, so it is never retried.
var errPollTimeout = errors.New("analysis did not reach a terminal status within the stage timeout")

// JobMetrics is the optional metrics surface the scheduler records to.
type JobMetrics interface {
	RecordJobStarted(ctx context.Context, pipeline string)
	RecordJobFinished(ctx context.Context, pipeline, outcome string, durationSeconds float64)
	RecordStage(ctx context.Context, stage string, success bool, durationSeconds float64)
	RecordStageRetry(ctx context.Context, stage string)
}

// Scheduler drives every job in a batch to a terminal state.
//
// A fixed pool of workers (Config.MaxConcurrent) admits Pending jobs in
// manifest order; each worker owns one job's state machine at a time.
// A single job's failure never aborts the rest of the batch - only a
// tracker invariant violation does, since that indicates a bug.
type Scheduler struct {
	cfg      Config
	client   platform.Client
	notifier notify.Notifier
	metrics  JobMetrics
	tracker  *Tracker
	logger   *slog.Logger
	batchID  string

	abortOnce sync.Once
	abortErr  error
	cancelRun context.CancelFunc
}

// New creates a scheduler for one batch of samples.
// notifier and metrics may be nil.
func New(cfg Config, samples []manifest.Sample, client platform.Client, notifier notify.Notifier, metrics JobMetrics) *Scheduler {
	if notifier == nil {
		notifier = notify.LogOnly{}
	}
	batchID := uuid.NewString()
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		client:   client,
		notifier: notifier,
		metrics:  metrics,
		tracker:  NewTracker(samples),
		logger:   slog.With("component", "scheduler", "batch", batchID),
		batchID:  batchID,
	}
}

// BatchID returns the unique identifier of this batch run.
func (s *Scheduler) BatchID() string {
	return s.batchID
}

// Tracker exposes the job state tracker for status reporting.
func (s *Scheduler) Tracker() *Tracker {
	return s.tracker
}

// Run executes the batch and returns its result. Cancelling ctx stops
// admission of new jobs; in-flight jobs end Cancelled. Run only returns an
// error on a tracker invariant violation, which aborts the whole batch.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	startedAt := time.Now()
	snapshot := s.tracker.Snapshot()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelRun = cancel

	jobs := make(chan string, len(snapshot))
	for _, rec := range snapshot {
		jobs <- rec.Sample.SampleID
	}
	close(jobs)

	s.logger.Info("Batch started", "samples", len(snapshot), "maxConcurrent", s.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	wg.Add(s.cfg.MaxConcurrent)
	for i := 0; i < s.cfg.MaxConcurrent; i++ {
		go func() {
			defer wg.Done()
			s.worker(runCtx, jobs)
		}()
	}
	wg.Wait()

	// Safety net: anything not terminal by now (abort path) ends Cancelled.
	for _, rec := range s.tracker.Snapshot() {
		if !rec.State.Terminal() {
			_ = s.tracker.Transition(rec.Sample.SampleID, StateCancelled, "batch aborted")
		}
	}

	if s.abortErr != nil {
		return nil, s.abortErr
	}

	res, err := s.tracker.Summarize()
	if err != nil {
		return nil, err
	}
	res.BatchID = s.batchID
	res.StartedAt = startedAt
	res.FinishedAt = time.Now()

	s.logger.Info("Batch finished",
		"completed", res.Counts[StateCompleted],
		"failed", res.Counts[StateFailed],
		"timedOut", res.Counts[StateTimedOut],
		"cancelled", res.Counts[StateCancelled],
	)
	return res, nil
}

// worker picks up Pending jobs until the queue empties. After cancellation,
// remaining queued jobs are marked Cancelled without ever starting.
func (s *Scheduler) worker(ctx context.Context, jobs <-chan string) {
	for id := range jobs {
		if ctx.Err() != nil {
			s.transition(id, StateCancelled, "cancelled before start")
			continue
		}
		s.runJob(ctx, id)
	}
}

// runJob drives one job's state machine to a terminal state.
func (s *Scheduler) runJob(ctx context.Context, id string) {
	rec, ok := s.tracker.Get(id)
	if !ok {
		s.abortWith(apperrors.InvalidTransition(fmt.Sprintf("unknown job %s", id)))
		return
	}
	sample := rec.Sample
	logger := s.logger.With("sample", id, "pipeline", sample.Pipeline)
	start := time.Now()

	if s.metrics != nil {
		s.metrics.RecordJobStarted(ctx, sample.Pipeline)
	}
	defer func() {
		if s.metrics != nil {
			outcome := string(s.tracker.State(id))
			s.metrics.RecordJobFinished(ctx, sample.Pipeline, outcome, time.Since(start).Seconds())
		}
	}()

	// Stage 1: upload
	if !s.transition(id, StateUploading, "") {
		return
	}
	logger.Info("Uploading data folder", "folder", sample.DataFolder)
	s.checkpoint(ctx, notify.KindStart, id, StateUploading, "")

	var dataRef string
	err, exhausted := s.retryStage(ctx, id, StageUpload, func(c context.Context) error {
		ref, uerr := s.client.Upload(c, sample.DataFolder, sample.SampleID)
		if uerr == nil {
			dataRef = ref
		}
		return uerr
	})
	if err != nil {
		s.failStage(ctx, id, StageUpload, err, exhausted, logger)
		return
	}

	// Stage 2: launch
	if !s.transition(id, StateLaunching, "") {
		return
	}
	params, err := platform.BuildParams(sample.Pipeline, sample.Reference, sample.SampleID, sample.TargetBed, sample.CustomParams)
	if err != nil {
		s.fail(ctx, id, StateFailed, err.Error(), logger)
		return
	}

	var analysisID string
	err, exhausted = s.retryStage(ctx, id, StageLaunch, func(c context.Context) error {
		aid, lerr := s.client.Launch(c, platform.LaunchSpec{
			Pipeline:      sample.Pipeline,
			Reference:     sample.Reference,
			UserReference: fmt.Sprintf("%s-%s", sample.SampleID, s.batchID[:8]),
			DataRef:       dataRef,
			Params:        params,
		})
		if lerr == nil {
			analysisID = aid
		}
		return lerr
	})
	if err != nil {
		s.failStage(ctx, id, StageLaunch, err, exhausted, logger)
		return
	}
	s.tracker.SetAnalysisID(id, analysisID)
	logger.Info("Analysis launched", "analysis", analysisID)

	// Stage 3: poll until the platform reports a terminal status
	if !s.transition(id, StateRunning, "") {
		return
	}
	status, err := s.pollAnalysis(ctx, id, analysisID)
	switch {
	case errors.Is(err, errPollTimeout):
		s.fail(ctx, id, StateTimedOut, fmt.Sprintf("analysis %s did not finish within %s", analysisID, s.cfg.StageTimeout), logger)
		return
	case err != nil:
		s.fail(ctx, id, StateCancelled, "cancelled while polling", logger)
		return
	case status.State == platform.StateFailed:
		detail := status.Detail
		if detail == "" {
			detail = "analysis failed"
		}
		s.fail(ctx, id, StateFailed, detail, logger)
		return
	}

	// Stage 4: download results
	if !s.transition(id, StateDownloading, "") {
		return
	}
	dest := filepath.Join(s.cfg.OutputDir, sample.SampleID)
	err, exhausted = s.retryStage(ctx, id, StageDownload, func(c context.Context) error {
		return s.client.Download(c, analysisID, dest)
	})
	if err != nil {
		// Partial results are removed once the job is terminal.
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			logger.Warn("Failed to remove partial results", "dest", dest, "error", rmErr)
		}
		s.failStage(ctx, id, StageDownload, err, exhausted, logger)
		return
	}

	if !s.transition(id, StateCompleted, "") {
		return
	}
	logger.Info("Job completed", "results", dest)
	s.checkpoint(ctx, notify.KindComplete, id, StateCompleted, "")
}

// retryStage runs one stage with the retry/backoff policy: up to
// MaxRetries+1 attempts, retrying only transient errors, with a per-attempt
// deadline of StageTimeout. exhausted is true when retries ran out.
func (s *Scheduler) retryStage(ctx context.Context, id string, stage Stage, fn func(context.Context) error) (err error, exhausted bool) {
	for attempt := 0; ; attempt++ {
		s.tracker.RecordAttempt(id, stage)

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
		start := time.Now()
		err = fn(attemptCtx)
		cancel()

		if s.metrics != nil {
			s.metrics.RecordStage(ctx, string(stage), err == nil, time.Since(start).Seconds())
		}
		if err == nil {
			return nil, false
		}
		if ctx.Err() != nil {
			return ctx.Err(), false
		}

		// An attempt that hit its own deadline is treated like a transient
		// network failure; only the poll stage turns timeouts terminal.
		if !apperrors.Retryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return err, false
		}
		if attempt >= s.cfg.MaxRetries {
			return err, true
		}

		if s.metrics != nil {
			s.metrics.RecordStageRetry(ctx, string(stage))
		}
		s.logger.Warn("Stage failed, retrying",
			"sample", id, "stage", stage, "attempt", attempt+1, "error", err)
		if berr := backoff.Sleep(ctx, attempt+1, s.cfg.Backoff); berr != nil {
			return berr, false
		}
	}
}

// pollAnalysis polls the platform until the analysis is terminal, the stage
// timeout elapses (errPollTimeout), or ctx is cancelled. Transient poll
// errors are logged and do not consume retries.
func (s *Scheduler) pollAnalysis(ctx context.Context, id, analysisID string) (platform.Status, error) {
	deadline := time.NewTimer(s.cfg.StageTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.tracker.RecordAttempt(id, StagePoll)
		status, err := s.client.Poll(ctx, analysisID)
		if err != nil {
			if ctx.Err() != nil {
				return platform.Status{}, ctx.Err()
			}
			s.logger.Warn("Poll failed", "sample", id, "analysis", analysisID, "error", err)
		} else if status.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return platform.Status{}, ctx.Err()
		case <-deadline.C:
			return platform.Status{}, errPollTimeout
		case <-ticker.C:
		}
	}
}

// failStage resolves a stage error into the job's terminal state.
func (s *Scheduler) failStage(ctx context.Context, id string, stage Stage, err error, exhausted bool, logger *slog.Logger) {
	if errors.Is(err, context.Canceled) {
		s.fail(ctx, id, StateCancelled, fmt.Sprintf("cancelled during %s", stage), logger)
		return
	}
	detail := err.Error()
	if exhausted {
		detail = fmt.Sprintf("%s exhausted retries: %v", stage, err)
	}
	s.fail(ctx, id, StateFailed, detail, logger)
}

// fail moves a job to a terminal state and fires the error checkpoint.
// Cancelled jobs are reported in the result but not notified.
func (s *Scheduler) fail(ctx context.Context, id string, state State, detail string, logger *slog.Logger) {
	if !s.transition(id, state, detail) {
		return
	}
	logger.Error("Job did not complete", "state", state, "detail", detail)
	if state == StateFailed || state == StateTimedOut {
		s.checkpoint(ctx, notify.KindError, id, state, detail)
	}
}

// checkpoint fires a notification if the checkpoint is subscribed.
// Delivery is best-effort and never alters job state.
func (s *Scheduler) checkpoint(ctx context.Context, kind notify.Kind, id string, state State, detail string) {
	if !s.cfg.NotifyOn[kind] {
		return
	}
	// Terminal notifications still go out when the batch is being cancelled.
	err := s.notifier.Notify(context.WithoutCancel(ctx), notify.Event{
		Kind:     kind,
		BatchID:  s.batchID,
		SampleID: id,
		State:    string(state),
		Detail:   detail,
		Time:     time.Now(),
	})
	if err != nil {
		s.logger.Warn("Notification failed", "sample", id, "kind", kind, "error", err)
	}
}

// transition applies a tracker transition, aborting the batch on an
// invariant violation.
func (s *Scheduler) transition(id string, next State, detail string) bool {
	if err := s.tracker.Transition(id, next, detail); err != nil {
		s.abortWith(err)
		return false
	}
	return true
}

// abortWith stops the batch after a consistency fault.
func (s *Scheduler) abortWith(err error) {
	s.abortOnce.Do(func() {
		s.abortErr = err
		s.logger.Error("Batch aborted", "error", err)
		if s.cancelRun != nil {
			s.cancelRun()
		}
	})
}
