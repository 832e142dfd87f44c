package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"icabatch/pkg/cloudevent"
)

// Webhook delivers events as CloudEvents to a generic HTTP endpoint,
// optionally HMAC-signed.
type Webhook struct {
	url        string
	signingKey string
	sender     *cloudevent.Sender
}

// NewWebhook creates a CloudEvents webhook notifier.
func NewWebhook(url, signingKey string) *Webhook {
	return &Webhook{
		url:        url,
		signingKey: signingKey,
		sender:     cloudevent.NewSender(10 * time.Second),
	}
}

// Notify posts the event as a CloudEvent.
func (w *Webhook) Notify(ctx context.Context, event Event) error {
	ce := cloudevent.New(
		"ica.batch."+string(event.Kind),
		"icabatch/"+event.BatchID,
		event.SampleID,
		uuid.NewString(),
		map[string]any{
			"sample_id": event.SampleID,
			"state":     event.State,
			"detail":    event.Detail,
		},
	)
	return w.sender.Send(ctx, w.url, ce, cloudevent.SendOptions{SigningKey: w.signingKey})
}
