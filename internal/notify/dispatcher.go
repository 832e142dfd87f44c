package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"icabatch/internal/config"
	"icabatch/pkg/backoff"
	"icabatch/pkg/circuitbreaker"
)

// ErrBufferFull is returned when the dispatcher's buffer is full and the event is dropped.
var ErrBufferFull = errors.New("notification buffer full, event dropped")

// Hardcoded delivery defaults - these rarely need tuning.
const (
	defaultMaxRetries       = 3
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultMaxRequeues      = 10
	deliveryTimeout         = 30 * time.Second
)

// Target is one named notification destination. The name keys its circuit
// breaker so a dead Slack webhook does not block email delivery.
type Target struct {
	Name     string
	Notifier Notifier
}

// MetricsRecorder is an optional interface for recording delivery metrics.
type MetricsRecorder interface {
	RecordNotifyDelivered(ctx context.Context, durationSeconds float64)
	RecordNotifyFailed(ctx context.Context)
	RecordNotifyDropped(ctx context.Context)
	RecordNotifyRequeued(ctx context.Context)
	RecordNotifyQueueSize(ctx context.Context, size int64)
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	BufferSize int // pending deliveries buffer (default: 1000)
	Workers    int // concurrent delivery goroutines (default: 4)
}

// LoadDispatcherConfig loads dispatcher configuration from environment variables.
func LoadDispatcherConfig() DispatcherConfig {
	cfg := DispatcherConfig{
		BufferSize: config.GetIntEnv("NOTIFY_BUFFER_SIZE", 1000),
		Workers:    config.GetIntEnv("NOTIFY_WORKERS", 4),
	}
	return cfg.withDefaults()
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// delivery is one queued (event, target) pair.
type delivery struct {
	event    Event
	target   Target
	requeues int
}

// Dispatcher delivers events to all targets asynchronously. Events are queued
// in a bounded channel and delivered by a worker pool with retry and
// per-target circuit breaking. If the buffer is full, events are dropped
// (logged + metric incremented) - notifications never block the batch.
type Dispatcher struct {
	queue    chan *delivery
	targets  []Target
	breakers *circuitbreaker.Registry
	logger   *slog.Logger
	metrics  MetricsRecorder

	// Internal counters (for Stats())
	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	requeued     atomic.Int64
	retriesTotal atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// Stats holds dispatcher statistics.
type Stats struct {
	QueueDepth   int   // current queue size
	Queued       int64 // total deliveries queued
	Delivered    int64 // successful deliveries
	Failed       int64 // failed after retries
	Dropped      int64 // dropped due to full buffer or max requeues
	Requeued     int64 // requeued due to open circuit
	RetriesTotal int64 // total retry attempts
	BreakersOpen int   // currently open breakers
}

// NewDispatcher creates a dispatcher delivering to the given targets.
func NewDispatcher(cfg DispatcherConfig, targets []Target, metrics MetricsRecorder) *Dispatcher {
	cfg = cfg.withDefaults()

	d := &Dispatcher{
		queue:   make(chan *delivery, cfg.BufferSize),
		targets: targets,
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		logger:   slog.With("component", "notify"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	if metrics != nil {
		go d.reportQueueSize()
	}

	d.logger.Info("Notification dispatcher started", "targets", len(targets), "workers", cfg.Workers)
	return d
}

// Notify queues the event for async delivery to every target. Non-blocking.
// Returns ErrBufferFull if any target's delivery could not be queued.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d.closed.Load() {
		return errors.New("dispatcher is closed")
	}

	var err error
	for _, target := range d.targets {
		select {
		case d.queue <- &delivery{event: event, target: target}:
			d.queued.Add(1)
		default:
			d.dropped.Add(1)
			if d.metrics != nil {
				d.metrics.RecordNotifyDropped(context.Background())
			}
			d.logger.Warn("Notification dropped, buffer full", "target", target.Name, "kind", event.Kind)
			err = ErrBufferFull
		}
	}
	return err
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth:   len(d.queue),
		Queued:       d.queued.Load(),
		Delivered:    d.delivered.Load(),
		Failed:       d.failed.Load(),
		Dropped:      d.dropped.Load(),
		Requeued:     d.requeued.Load(),
		RetriesTotal: d.retriesTotal.Load(),
		BreakersOpen: d.breakers.Stats().Open,
	}
}

// Close gracefully shuts down, attempting to deliver queued events.
// The context deadline controls how long to wait for drain.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil // already closed
	}

	d.logger.Info("Notification dispatcher shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Notification dispatcher shutdown complete",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Notification dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

// reportQueueSize periodically reports the queue size metric.
func (d *Dispatcher) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.metrics.RecordNotifyQueueSize(context.Background(), int64(len(d.queue)))
		}
	}
}

// worker processes deliveries from the queue.
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			// Drain remaining deliveries before exiting
			d.drainQueue()
			return
		case item := <-d.queue:
			d.deliver(item)
		}
	}
}

// drainQueue delivers remaining events after shutdown signal.
func (d *Dispatcher) drainQueue() {
	for {
		select {
		case item := <-d.queue:
			d.deliver(item)
		default:
			return // queue empty
		}
	}
}

// deliver attempts one delivery with retry and circuit breaker.
func (d *Dispatcher) deliver(item *delivery) {
	breaker := d.breakers.Get(item.target.Name)

	if !breaker.Allow() {
		d.requeue(item)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	start := time.Now()
	if err := d.sendWithRetry(ctx, item); err != nil {
		breaker.RecordFailure()
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordNotifyFailed(ctx)
		}
		d.logger.Warn("Notification delivery failed", "target", item.target.Name, "kind", item.event.Kind, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordNotifyDelivered(ctx, time.Since(start).Seconds())
	}
}

// requeue puts a delivery back in the queue after a delay when its circuit is open.
func (d *Dispatcher) requeue(item *delivery) {
	if item.requeues >= defaultMaxRequeues {
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordNotifyDropped(context.Background())
		}
		d.logger.Warn("Notification dropped, max requeues reached",
			"target", item.target.Name,
			"kind", item.event.Kind,
			"requeues", item.requeues,
		)
		return
	}

	item.requeues++
	d.requeued.Add(1)
	if d.metrics != nil {
		d.metrics.RecordNotifyRequeued(context.Background())
	}

	// Requeue after cooldown so the circuit has time to recover
	go func() {
		select {
		case <-d.shutdown:
			return
		case <-time.After(defaultBreakerCooldown):
		}

		select {
		case d.queue <- item:
		case <-d.shutdown:
		default:
			// Buffer full, drop
			d.dropped.Add(1)
			if d.metrics != nil {
				d.metrics.RecordNotifyDropped(context.Background())
			}
			d.logger.Warn("Notification dropped on requeue, buffer full", "target", item.target.Name)
		}
	}()
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, item *delivery) error {
	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			d.retriesTotal.Add(1)
			if err := backoff.Sleep(ctx, attempt, nil); err != nil {
				return err
			}
		}

		lastErr = item.target.Notifier.Notify(ctx, item.event)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
