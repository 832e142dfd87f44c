package backoff

import (
	"context"
	"testing"
	"time"
)

func TestExponentialDefaults(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{10, 5 * time.Second}, // capped at max
	}

	for _, tt := range tests {
		if got := Exponential(tt.attempt, nil); got != tt.want {
			t.Errorf("Exponential(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialCustomConfig(t *testing.T) {
	cfg := &Config{Initial: time.Second, Max: 4 * time.Second}

	if got := Exponential(1, cfg); got != time.Second {
		t.Errorf("Exponential(1) = %v, want 1s", got)
	}
	if got := Exponential(2, cfg); got != 2*time.Second {
		t.Errorf("Exponential(2) = %v, want 2s", got)
	}
	if got := Exponential(5, cfg); got != 4*time.Second {
		t.Errorf("Exponential(5) = %v, want capped 4s", got)
	}
}

func TestExponentialMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := Exponential(attempt, nil)
		if d < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &Config{Initial: time.Minute, Max: time.Minute}
	start := time.Now()
	err := Sleep(ctx, 1, cfg)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}

func TestSleepCompletes(t *testing.T) {
	cfg := &Config{Initial: 10 * time.Millisecond, Max: 10 * time.Millisecond}
	if err := Sleep(context.Background(), 1, cfg); err != nil {
		t.Fatalf("Sleep returned error: %v", err)
	}
}
