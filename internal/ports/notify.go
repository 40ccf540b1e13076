package ports

import (
	"context"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// WebhookTransport delivers a single webhook payload over HTTP. Kept
// separate from WebhookQueueStore so the dispatcher's retry loop and the
// durability layer can be tested independently.
type WebhookTransport interface {
	Deliver(ctx context.Context, w domain.Webhook, payload domain.EventPayload) error
}

// EmailTransport is the external collaborator that actually sends mail;
// the dispatcher only decides whether and what to send.
type EmailTransport interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// Console is the operator-facing status reporter, mirrored on the teacher's
// ports.Notifier for the scanner's table/compact console output.
type Console interface {
	ReportStatus(ctx context.Context, snapshot domain.StatusSnapshot) error
}
