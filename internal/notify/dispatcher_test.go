package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"icabatch/internal/testutil"
)

func newTestEvent(kind Kind, sample string) Event {
	return Event{Kind: kind, SampleID: sample, BatchID: "batch-1", Time: time.Now()}
}

func TestDispatcherDelivers(t *testing.T) {
	var received atomic.Int64
	target := Target{Name: "spy", Notifier: Func(func(ctx context.Context, e Event) error {
		received.Add(1)
		return nil
	})}

	d := NewDispatcher(DispatcherConfig{BufferSize: 100, Workers: 2}, []Target{target}, nil)

	if err := d.Notify(context.Background(), newTestEvent(KindComplete, "sample1")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	testutil.MustWaitForCount(t, &received, 1, testutil.WithTimeout(5*time.Second))

	if got := d.Stats().Delivered; got != 1 {
		t.Errorf("Delivered = %d, want 1", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestDispatcherFansOutToAllTargets(t *testing.T) {
	var a, b atomic.Int64
	targets := []Target{
		{Name: "a", Notifier: Func(func(ctx context.Context, e Event) error { a.Add(1); return nil })},
		{Name: "b", Notifier: Func(func(ctx context.Context, e Event) error { b.Add(1); return nil })},
	}

	d := NewDispatcher(DispatcherConfig{BufferSize: 100, Workers: 2}, targets, nil)
	d.Notify(context.Background(), newTestEvent(KindError, "sample2"))

	testutil.MustWaitForCount(t, &a, 1, testutil.WithTimeout(5*time.Second))
	testutil.MustWaitForCount(t, &b, 1, testutil.WithTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestDispatcherRetries(t *testing.T) {
	var attempts atomic.Int64
	target := Target{Name: "flaky", Notifier: Func(func(ctx context.Context, e Event) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})}

	d := NewDispatcher(DispatcherConfig{BufferSize: 100, Workers: 1}, []Target{target}, nil)
	d.Notify(context.Background(), newTestEvent(KindStart, "sample1"))

	testutil.MustWaitFor(t, func() bool {
		return d.Stats().Delivered >= 1
	}, testutil.WithTimeout(5*time.Second))

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if got := d.Stats().RetriesTotal; got != 2 {
		t.Errorf("RetriesTotal = %d, want 2", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestDispatcherBufferFull(t *testing.T) {
	block := make(chan struct{})
	target := Target{Name: "slow", Notifier: Func(func(ctx context.Context, e Event) error {
		<-block
		return nil
	})}

	d := NewDispatcher(DispatcherConfig{BufferSize: 1, Workers: 1}, []Target{target}, nil)

	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := d.Notify(context.Background(), newTestEvent(KindStart, "s")); errors.Is(err, ErrBufferFull) {
			sawFull = true
		}
	}
	close(block)

	if !sawFull {
		t.Error("expected ErrBufferFull once the buffer filled")
	}
	if d.Stats().Dropped == 0 {
		t.Error("expected dropped notifications")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestDispatcherCircuitBreaksFailingTarget(t *testing.T) {
	var attempts atomic.Int64
	target := Target{Name: "dead", Notifier: Func(func(ctx context.Context, e Event) error {
		attempts.Add(1)
		return errors.New("down")
	})}

	d := NewDispatcher(DispatcherConfig{BufferSize: 100, Workers: 1}, []Target{target}, nil)

	// Each failed delivery is retried defaultMaxRetries times and counts one
	// breaker failure; after the threshold the circuit opens.
	for i := 0; i < defaultBreakerThreshold+2; i++ {
		d.Notify(context.Background(), newTestEvent(KindError, "s"))
	}

	testutil.MustWaitFor(t, func() bool {
		return d.Stats().BreakersOpen == 1
	}, testutil.WithTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestDispatcherClosedRejects(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, Workers: 1}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)

	if err := d.Notify(context.Background(), newTestEvent(KindStart, "s")); err == nil {
		t.Error("Notify after Close should fail")
	}
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	var delivered atomic.Int64
	f := Fanout{
		Func(func(ctx context.Context, e Event) error { return errors.New("down") }),
		Func(func(ctx context.Context, e Event) error { delivered.Add(1); return nil }),
	}

	err := f.Notify(context.Background(), newTestEvent(KindComplete, "sample1"))
	if err == nil {
		t.Error("Fanout should report the failure")
	}
	if delivered.Load() != 1 {
		t.Error("Fanout should deliver to remaining targets after a failure")
	}
}
