package batch

import (
	"strings"
	"time"

	"icabatch/internal/config"
	"icabatch/internal/notify"
	"icabatch/pkg/backoff"
)

// Config holds scheduler settings.
type Config struct {
	MaxConcurrent int                  // concurrency ceiling for active jobs (default: 5)
	MaxRetries    int                  // extra attempts per retryable stage (default: 3)
	StageTimeout  time.Duration        // per-stage deadline; elapsing it during poll means TimedOut (default: 4h)
	PollInterval  time.Duration        // analysis poll cadence (default: 1m)
	NotifyOn      map[notify.Kind]bool // subscribed checkpoints
	OutputDir     string               // destination root for downloaded results (default: ./results)
	Backoff       *backoff.Config      // retry delay curve (default: 2s initial, 1m cap)
}

// LoadConfig loads scheduler configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		MaxConcurrent: config.GetIntEnv("BATCH_MAX_CONCURRENT", 5),
		MaxRetries:    config.GetIntEnv("BATCH_MAX_RETRIES", 3),
		StageTimeout:  config.GetDurationEnv("BATCH_STAGE_TIMEOUT", 4*time.Hour),
		PollInterval:  config.GetDurationEnv("BATCH_POLL_INTERVAL", time.Minute),
		NotifyOn:      ParseNotifyOn(config.GetEnv("BATCH_NOTIFY_ON", "complete,error")),
		OutputDir:     config.GetEnv("BATCH_OUTPUT_DIR", "results"),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 4 * time.Hour
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.NotifyOn == nil {
		c.NotifyOn = ParseNotifyOn("complete,error")
	}
	if c.OutputDir == "" {
		c.OutputDir = "results"
	}
	if c.Backoff == nil {
		c.Backoff = &backoff.Config{Initial: 2 * time.Second, Max: time.Minute}
	}
	return c
}

// ParseNotifyOn parses a comma-separated checkpoint list ("start,complete,error").
// Unknown entries are ignored.
func ParseNotifyOn(s string) map[notify.Kind]bool {
	on := make(map[notify.Kind]bool)
	for _, part := range strings.Split(s, ",") {
		switch notify.Kind(strings.TrimSpace(strings.ToLower(part))) {
		case notify.KindStart:
			on[notify.KindStart] = true
		case notify.KindComplete:
			on[notify.KindComplete] = true
		case notify.KindError:
			on[notify.KindError] = true
		}
	}
	return on
}
