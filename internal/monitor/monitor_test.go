package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"icabatch/internal/notify"
	"icabatch/internal/platform"
)

type fakeUsage struct {
	mu      sync.Mutex
	storage platform.StorageUsage
	costs   platform.CostReport
	err     error
}

func (f *fakeUsage) Storage(ctx context.Context) (platform.StorageUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storage, f.err
}

func (f *fakeUsage) Costs(ctx context.Context) (platform.CostReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.costs, f.err
}

func (f *fakeUsage) set(storage platform.StorageUsage, costs platform.CostReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storage, f.costs = storage, costs
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureNotifier) Notify(ctx context.Context, event notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestStorageAlertFiresOncePerCrossing(t *testing.T) {
	usage := &fakeUsage{}
	spy := &captureNotifier{}
	m := New(Config{StoragePercent: 80}, usage, spy)

	usage.set(platform.StorageUsage{UsedGB: 500, TotalGB: 1000}, platform.CostReport{})
	m.Check(context.Background())
	if spy.count() != 0 {
		t.Fatalf("alerts = %d, want 0 below threshold", spy.count())
	}

	usage.set(platform.StorageUsage{UsedGB: 850, TotalGB: 1000}, platform.CostReport{})
	m.Check(context.Background())
	m.Check(context.Background())
	if spy.count() != 1 {
		t.Fatalf("alerts = %d, want 1 per crossing", spy.count())
	}
	if spy.events[0].Kind != notify.KindAlert {
		t.Errorf("kind = %s, want alert", spy.events[0].Kind)
	}
	if !strings.Contains(spy.events[0].Detail, "85.0%") {
		t.Errorf("detail = %q", spy.events[0].Detail)
	}

	// Dropping back below the threshold re-arms the alert.
	usage.set(platform.StorageUsage{UsedGB: 400, TotalGB: 1000}, platform.CostReport{})
	m.Check(context.Background())
	usage.set(platform.StorageUsage{UsedGB: 900, TotalGB: 1000}, platform.CostReport{})
	m.Check(context.Background())
	if spy.count() != 2 {
		t.Fatalf("alerts = %d, want 2 after re-crossing", spy.count())
	}
}

func TestCostAlert(t *testing.T) {
	usage := &fakeUsage{}
	spy := &captureNotifier{}
	m := New(Config{CostLimit: 1000}, usage, spy)

	usage.set(platform.StorageUsage{}, platform.CostReport{TotalCost: 999.99, Currency: "USD"})
	m.Check(context.Background())
	if spy.count() != 0 {
		t.Fatalf("alerts = %d, want 0 below limit", spy.count())
	}

	usage.set(platform.StorageUsage{}, platform.CostReport{TotalCost: 1050, Currency: "USD"})
	m.Check(context.Background())
	if spy.count() != 1 {
		t.Fatalf("alerts = %d, want 1", spy.count())
	}
	if !strings.Contains(spy.events[0].Detail, "1050.00 USD") {
		t.Errorf("detail = %q", spy.events[0].Detail)
	}
}

func TestCheckSurvivesReporterErrors(t *testing.T) {
	usage := &fakeUsage{err: errors.New("502 bad gateway")}
	spy := &captureNotifier{}
	m := New(Config{StoragePercent: 80, CostLimit: 100}, usage, spy)

	m.Check(context.Background())
	if spy.count() != 0 {
		t.Fatalf("alerts = %d, want 0 on sampling errors", spy.count())
	}
}

func TestDisabledChecksNeverSample(t *testing.T) {
	usage := &fakeUsage{err: errors.New("should not be called")}
	m := New(Config{}, usage, &captureNotifier{})
	m.Check(context.Background())
}

func TestRunStopsOnCancel(t *testing.T) {
	usage := &fakeUsage{}
	m := New(Config{StoragePercent: 80}, usage, &captureNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
