package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakePlatform struct {
	calls atomic.Int32
	err   error
}

func (f *fakePlatform) Ready(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	c := NewChecker(&fakePlatform{err: errors.New("down")})
	if resp := c.Liveness(context.Background()); !resp.IsHealthy() {
		t.Error("liveness must not depend on the platform")
	}
}

func TestReadinessReflectsPlatform(t *testing.T) {
	fp := &fakePlatform{}
	c := NewChecker(fp)

	resp := c.Readiness(context.Background())
	if !resp.IsHealthy() {
		t.Fatalf("status = %s, want healthy", resp.Status)
	}
	if resp.Checks["platform"].Status != StatusHealthy {
		t.Errorf("platform check = %+v", resp.Checks["platform"])
	}
}

func TestReadinessUnhealthyOnPlatformError(t *testing.T) {
	c := NewChecker(&fakePlatform{err: errors.New("401 unauthorized")})

	resp := c.Readiness(context.Background())
	if resp.IsHealthy() {
		t.Fatal("status = healthy, want unhealthy")
	}
	if resp.Checks["platform"].Message != "401 unauthorized" {
		t.Errorf("message = %q", resp.Checks["platform"].Message)
	}
}

func TestReadinessCachesResult(t *testing.T) {
	fp := &fakePlatform{}
	c := NewChecker(fp)

	for range 5 {
		c.Readiness(context.Background())
	}
	if got := fp.calls.Load(); got != 1 {
		t.Errorf("platform probes = %d, want 1 (cached)", got)
	}
}

func TestShutdownFailsReadiness(t *testing.T) {
	c := NewChecker(&fakePlatform{})
	c.Readiness(context.Background())
	c.SetShuttingDown()

	resp := c.Readiness(context.Background())
	if resp.IsHealthy() {
		t.Fatal("readiness healthy during shutdown")
	}
	if _, ok := resp.Checks["shutdown"]; !ok {
		t.Errorf("checks = %v, want shutdown entry", resp.Checks)
	}
}

func TestNilPlatformIsUnhealthy(t *testing.T) {
	c := NewChecker(nil)
	if resp := c.Readiness(context.Background()); resp.IsHealthy() {
		t.Fatal("readiness healthy with no platform client")
	}
}
