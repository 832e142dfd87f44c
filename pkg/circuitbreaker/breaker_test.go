package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(Config{Threshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != Closed {
		t.Fatalf("state = %v after 2 failures, want closed", b.State())
	}

	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("state = %v after 3 failures, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker should not allow requests")
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := New(Config{Threshold: 1, Cooldown: 10 * time.Millisecond})

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should be open immediately after failure")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should allow a probe after cooldown")
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}

	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("state = %v after successful probe, want closed", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := New(Config{Threshold: 1, Cooldown: 10 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	b.Allow() // transitions to half-open
	b.RecordFailure()

	if b.State() != Open {
		t.Fatalf("state = %v after failed probe, want open", b.State())
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New(Config{Threshold: 3, Cooldown: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != Closed {
		t.Fatal("non-consecutive failures should not open the breaker")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Config{Threshold: 1, Cooldown: time.Minute})

	a := r.Get("hooks.slack.com")
	b := r.Get("hooks.slack.com")
	if a != b {
		t.Error("registry should return the same breaker for the same key")
	}

	r.Get("smtp.example.com").RecordFailure()

	stats := r.Stats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Open != 1 {
		t.Errorf("Open = %d, want 1", stats.Open)
	}
	if stats.Closed != 1 {
		t.Errorf("Closed = %d, want 1", stats.Closed)
	}

	r.Reset()
	if r.Stats().Open != 0 {
		t.Error("Reset should close all breakers")
	}
}
