package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"icabatch/internal/notify"
	"icabatch/internal/platform"
)

type scriptedPoller struct {
	calls   atomic.Int32
	results []func() (platform.Status, error)
}

func (p *scriptedPoller) Poll(ctx context.Context, analysisID string) (platform.Status, error) {
	n := int(p.calls.Add(1)) - 1
	if n >= len(p.results) {
		n = len(p.results) - 1
	}
	return p.results[n]()
}

func running() (platform.Status, error) {
	return platform.Status{State: platform.StateRunning, Detail: "INPROGRESS"}, nil
}

func TestWatchAnalysisCompletes(t *testing.T) {
	poller := &scriptedPoller{results: []func() (platform.Status, error){
		running,
		running,
		func() (platform.Status, error) {
			return platform.Status{State: platform.StateSucceeded}, nil
		},
	}}
	spy := &captureNotifier{}

	status, err := WatchAnalysis(context.Background(), poller, spy, "an-1", time.Millisecond)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if status.State != platform.StateSucceeded {
		t.Fatalf("state = %s", status.State)
	}
	if spy.count() != 1 || spy.events[0].Kind != notify.KindComplete {
		t.Errorf("events = %+v", spy.events)
	}
}

func TestWatchAnalysisFailureNotifiesError(t *testing.T) {
	poller := &scriptedPoller{results: []func() (platform.Status, error){
		func() (platform.Status, error) {
			return platform.Status{State: platform.StateFailed, Detail: "DRAGEN exited 1"}, nil
		},
	}}
	spy := &captureNotifier{}

	status, err := WatchAnalysis(context.Background(), poller, spy, "an-1", time.Millisecond)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if status.State != platform.StateFailed {
		t.Fatalf("state = %s", status.State)
	}
	if spy.count() != 1 || spy.events[0].Kind != notify.KindError {
		t.Errorf("events = %+v", spy.events)
	}
}

func TestWatchAnalysisAlertsOnPollErrorsAndContinues(t *testing.T) {
	poller := &scriptedPoller{results: []func() (platform.Status, error){
		func() (platform.Status, error) {
			return platform.Status{}, errors.New("502 bad gateway")
		},
		func() (platform.Status, error) {
			return platform.Status{State: platform.StateSucceeded}, nil
		},
	}}
	spy := &captureNotifier{}

	if _, err := WatchAnalysis(context.Background(), poller, spy, "an-1", time.Millisecond); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if spy.count() != 2 {
		t.Fatalf("events = %d, want alert + complete", spy.count())
	}
	if spy.events[0].Kind != notify.KindAlert || spy.events[1].Kind != notify.KindComplete {
		t.Errorf("events = %+v", spy.events)
	}
}

func TestWatchAnalysisStopsOnCancel(t *testing.T) {
	poller := &scriptedPoller{results: []func() (platform.Status, error){running}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := WatchAnalysis(ctx, poller, nil, "an-1", time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
