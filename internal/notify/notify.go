// Package notify delivers batch lifecycle notifications (email, Slack,
// signed webhooks). Delivery is best-effort: a failed notification never
// affects job state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Kind classifies a notification checkpoint.
type Kind string

const (
	KindStart    Kind = "start"    // job began work (entered Uploading)
	KindComplete Kind = "complete" // job reached Completed
	KindError    Kind = "error"    // job reached Failed or TimedOut
	KindAlert    Kind = "alert"    // monitor threshold crossed
)

// Event is one notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	BatchID  string    `json:"batch_id,omitempty"`
	SampleID string    `json:"sample_id,omitempty"`
	State    string    `json:"state,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Time     time.Time `json:"time"`
}

// Subject returns a short one-line summary suitable for an email subject.
func (e Event) Subject() string {
	switch e.Kind {
	case KindStart:
		return fmt.Sprintf("Sample %s started", e.SampleID)
	case KindComplete:
		return fmt.Sprintf("Sample %s completed", e.SampleID)
	case KindError:
		return fmt.Sprintf("Sample %s %s", e.SampleID, e.State)
	case KindAlert:
		return "ICA alert"
	default:
		return fmt.Sprintf("ICA batch event: %s", e.Kind)
	}
}

// Body returns the full message text.
func (e Event) Body() string {
	msg := e.Subject()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.BatchID != "" {
		msg += fmt.Sprintf(" (batch %s)", e.BatchID)
	}
	return msg
}

// Notifier delivers an event to one destination.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, event Event) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogOnly is the fallback notifier used when no destinations are configured.
type LogOnly struct{}

// Notify writes the event to the log.
func (LogOnly) Notify(ctx context.Context, event Event) error {
	slog.InfoContext(ctx, "Notification", "kind", event.Kind, "sample", event.SampleID, "detail", event.Detail)
	return nil
}

// Fanout sends each event to every notifier. Individual failures are logged
// and do not stop delivery to the remaining destinations; the last error is
// returned for accounting.
type Fanout []Notifier

// Notify delivers the event to all destinations.
func (f Fanout) Notify(ctx context.Context, event Event) error {
	var lastErr error
	for _, n := range f {
		if err := n.Notify(ctx, event); err != nil {
			slog.WarnContext(ctx, "Notification delivery failed", "kind", event.Kind, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
