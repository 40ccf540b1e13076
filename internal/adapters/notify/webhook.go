package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// WebhookSender implements ports.WebhookTransport over plain HTTP POST,
// reusing the teacher's http.Client-with-timeout idiom from
// internal/adapters/polymarket/client.go rather than introducing a second
// HTTP stack.
type WebhookSender struct {
	http *http.Client
}

// NewWebhookSender creates a sender with a bounded per-request timeout.
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{http: &http.Client{Timeout: 5 * time.Second}}
}

// Deliver POSTs the event payload to the webhook's URL. A non-2xx response
// or transport error is returned so the dispatcher's worker pool can decide
// whether to retry or dead-letter the delivery.
func (s *WebhookSender) Deliver(ctx context.Context, w domain.Webhook, payload domain.EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify.Deliver: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Deliver: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", payload.Event)
	req.Header.Set("User-Agent", "PolySignal/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Deliver: %s: %w", w.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify.Deliver: %s: status %d", w.URL, resp.StatusCode)
	}
	return nil
}
