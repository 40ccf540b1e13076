// Package dispatch implements the Notification Dispatcher (spec.md §4.10):
// a durable webhook queue with a draining worker pool, and a per-owner
// email channel with priority scoring, throttling, and a digest queue.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// EventWebhookNames maps internal audit event types to outbound webhook
// event names (spec.md §4.5: "a bounded mapping from internal event types
// ... to outbound webhook event names"). An event type absent from this map
// is not forwarded to either channel.
var EventWebhookNames = map[string]string{
	domain.EventPositionOpened:       "trade.opened",
	domain.EventOrderPlaced:          "trade.placed",
	domain.EventOrderRejected:        "trade.rejected",
	domain.EventOrderFillError:       "trade.fill_error",
	domain.EventOrderPartialFill:     "trade.partial_fill",
	domain.EventPartialExit:          "trade.partial_exit",
	domain.EventPositionClosed:       "trade.closed",
	domain.EventCircuitBreaker:       "risk.circuit_breaker",
	domain.EventBotStateChange:       "bot.state_change",
	domain.EventConfigChange:         "config.changed",
	domain.EventPositionAutoRepaired: "trade.auto_repaired",
	domain.EventClobUnreachable:      "clob.unreachable",
	domain.EventPendingTimeout:       "trade.pending_timeout",
}

// Dispatcher is the Notification Dispatcher. It implements
// auditlog.Dispatcher so the Audit Log can invoke it synchronously after
// every successful append.
type Dispatcher struct {
	webhooks      ports.WebhookStore
	queue         ports.WebhookQueueStore
	emailPrefs    ports.EmailPrefStore
	emailSender   ports.EmailTransport
	webhookSender ports.WebhookTransport
	clock         ports.Clock

	mu        sync.Mutex
	throttles map[string]*domain.ThrottleBucket
}

// New creates a Dispatcher.
func New(
	webhooks ports.WebhookStore,
	queue ports.WebhookQueueStore,
	emailPrefs ports.EmailPrefStore,
	emailSender ports.EmailTransport,
	webhookSender ports.WebhookTransport,
	clock ports.Clock,
) *Dispatcher {
	return &Dispatcher{
		webhooks:      webhooks,
		queue:         queue,
		emailPrefs:    emailPrefs,
		emailSender:   emailSender,
		webhookSender: webhookSender,
		clock:         clock,
		throttles:     make(map[string]*domain.ThrottleBucket),
	}
}

// NotifyEvent builds the common per-signal payload, enqueues it for every
// active webhook, and evaluates the email channel for every opted-in
// subscriber (spec.md §4.10). It never returns an error: delivery is
// asynchronous (webhooks) or best-effort (email), and failures are logged.
func (d *Dispatcher) NotifyEvent(ctx context.Context, eventType string, _ *int64, detail map[string]any) {
	name, ok := EventWebhookNames[eventType]
	if !ok {
		return
	}
	payload := domain.EventPayload{Event: name, Timestamp: d.clock.Now(), Data: detail}

	d.enqueueWebhooks(ctx, payload)
	d.dispatchEmail(ctx, eventType, detail, payload)
}

func (d *Dispatcher) enqueueWebhooks(ctx context.Context, payload domain.EventPayload) {
	hooks, err := d.webhooks.ListAllActive(ctx)
	if err != nil {
		slog.Warn("dispatch: list active webhooks failed", "error", err)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("dispatch: marshal webhook payload failed", "error", err)
		return
	}
	for _, w := range hooks {
		_, err := d.queue.Enqueue(ctx, domain.WebhookDelivery{
			WebhookID:  w.ID,
			Event:      payload.Event,
			Payload:    body,
			Status:     domain.DeliveryQueued,
			EnqueuedAt: d.clock.Now(),
		})
		if err != nil {
			slog.Warn("dispatch: enqueue webhook delivery failed", "webhook_id", w.ID, "error", err)
		}
	}
}

// RunWebhookWorkers starts a fixed-size pool draining the webhook_queue
// table on a poll interval, following the teacher's worker-pool idiom
// (work channel fed by one producer, N consumers, WaitGroup on shutdown)
// generalized from parallel market analysis to queued HTTP delivery.
// If workers <= 0 it defaults to runtime.NumCPU().
func (d *Dispatcher) RunWebhookWorkers(ctx context.Context, workers, batchSize int, pollInterval time.Duration) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workCh := make(chan domain.WebhookDelivery)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for delivery := range workCh {
				d.deliverOne(ctx, delivery)
			}
		}()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer func() {
		close(workCh)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := d.queue.ClaimBatch(ctx, batchSize)
			if err != nil {
				slog.Warn("dispatch: claim webhook batch failed", "error", err)
				continue
			}
			for _, delivery := range batch {
				select {
				case workCh <- delivery:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, delivery domain.WebhookDelivery) {
	w, err := d.webhooks.GetByID(ctx, delivery.WebhookID)
	if err != nil {
		slog.Warn("dispatch: resolve webhook failed", "webhook_id", delivery.WebhookID, "error", err)
		_ = d.queue.MarkFailed(ctx, delivery.ID, delivery.Attempts+1, err.Error(), true)
		return
	}

	var payload domain.EventPayload
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		_ = d.queue.MarkFailed(ctx, delivery.ID, delivery.Attempts+1, err.Error(), true)
		return
	}

	err = d.webhookSender.Deliver(ctx, w, payload)
	if err != nil {
		_ = d.webhooks.RecordFailure(ctx, w.ID, err.Error())
		deadLetter := delivery.Attempts+1 >= domain.MaxDeliveryAttempts
		if markErr := d.queue.MarkFailed(ctx, delivery.ID, delivery.Attempts+1, err.Error(), deadLetter); markErr != nil {
			slog.Warn("dispatch: mark delivery failed", "delivery_id", delivery.ID, "error", markErr)
		}
		return
	}

	_ = d.webhooks.RecordSuccess(ctx, w.ID)
	if err := d.queue.MarkDelivered(ctx, delivery.ID, d.clock.Now()); err != nil {
		slog.Warn("dispatch: mark delivered failed", "delivery_id", delivery.ID, "error", err)
	}
}

func (d *Dispatcher) dispatchEmail(ctx context.Context, eventType string, detail map[string]any, payload domain.EventPayload) {
	prefs, err := d.emailPrefs.ListEnabled(ctx)
	if err != nil {
		slog.Warn("dispatch: list email prefs failed", "error", err)
		return
	}

	confidence := floatField(detail, "confidence")
	category, _ := detail["category"].(string)
	priority := domain.ScorePriority(eventType, detail)

	for _, pref := range prefs {
		if confidence < pref.MinConfidence || !pref.MatchesCategory(category) {
			continue
		}
		d.sendOrQueue(ctx, pref, priority, payload)
	}
}

func floatField(data map[string]any, key string) float64 {
	v, ok := data[key]
	if !ok {
		return 0
	}
	f, _ := v.(float64)
	return f
}

func (d *Dispatcher) sendOrQueue(ctx context.Context, pref domain.EmailPreference, priority domain.Priority, payload domain.EventPayload) {
	now := d.clock.Now()

	d.mu.Lock()
	bucket, ok := d.throttles[pref.OwnerEmail]
	if !ok {
		bucket = &domain.ThrottleBucket{}
		d.throttles[pref.OwnerEmail] = bucket
	}
	bucket.Rollover(now)

	entry := domain.DigestEntry{Event: payload.Event, Data: payload.Data, Priority: priority, QueuedAt: now}

	if priority.DigestOnly() {
		bucket.EnqueueDigest(entry)
		d.mu.Unlock()
		return
	}

	if !priority.Unlimited() {
		limit := float64(pref.MaxAlertsPerHour) * priority.Multiplier()
		if float64(bucket.Count) >= limit {
			bucket.EnqueueDigest(entry)
			d.mu.Unlock()
			return
		}
	}
	bucket.Count++
	d.mu.Unlock()

	subject := fmt.Sprintf("[%s] %s", priority, payload.Event)
	body := fmt.Sprintf("%s\n\n%v", payload.Event, payload.Data)
	if err := d.emailSender.Send(ctx, pref.OwnerEmail, subject, body); err != nil {
		slog.Warn("dispatch: send email failed", "owner", pref.OwnerEmail, "error", err)
	}
}

// FlushDigestQueue returns and clears the queued digest entries for one
// owner (spec.md §4.10).
func (d *Dispatcher) FlushDigestQueue(owner string) []domain.DigestEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	bucket, ok := d.throttles[owner]
	if !ok {
		return nil
	}
	return bucket.Flush()
}
