// Package health provides liveness and readiness probes for the status server.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker verifies the platform is reachable and accepting work.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult contains the result of one dependency check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// Checker probes the platform backend. Readiness results are cached briefly
// so probes do not translate into platform API traffic one-to-one.
type Checker struct {
	platform ReadinessChecker
	timeout  time.Duration
	cacheTTL time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cached       *Response
	shuttingDown bool
}

// NewChecker creates a health checker over the platform client.
func NewChecker(platform ReadinessChecker) *Checker {
	return &Checker{
		platform: platform,
		timeout:  10 * time.Second,
		cacheTTL: 30 * time.Second,
	}
}

// Liveness reports process liveness. It never touches the platform.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness checks that the platform is reachable and credentials work.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}
	if c.cached != nil && time.Since(c.lastCheck) < c.cacheTTL {
		cached := c.cached
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	check := c.checkPlatform(ctx)
	response := &Response{
		Status: check.Status,
		Checks: map[string]CheckResult{"platform": check},
	}

	c.mu.Lock()
	c.cached = response
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return response
}

func (c *Checker) checkPlatform(ctx context.Context) CheckResult {
	if c.platform == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "platform client not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.platform.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown makes readiness fail so orchestration stops routing
// traffic here during shutdown.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cached = nil
}
