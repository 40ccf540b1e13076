package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polysignal/internal/adapters/sqlitestore"
	"github.com/alejandrodnm/polysignal/internal/application/dispatch"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type fakeWebhookSender struct {
	mu        sync.Mutex
	delivered []domain.EventPayload
	fail      bool
}

func (f *fakeWebhookSender) Deliver(_ context.Context, _ domain.Webhook, payload domain.EventPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return assert.AnError
	}
	f.delivered = append(f.delivered, payload)
	return nil
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeEmailSender) Send(_ context.Context, to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

func newDB(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNotifyEvent_EnqueuesWebhookForActiveSubscribers(t *testing.T) {
	db := newDB(t)
	_, err := db.Create(context.Background(), domain.Webhook{OwnerEmail: "a@example.com", URL: "http://example.com/hook"})
	require.NoError(t, err)

	ws := &fakeWebhookSender{}
	d := dispatch.New(db, db, db, &fakeEmailSender{}, ws, fakeClock{now: time.Now()})

	d.NotifyEvent(context.Background(), domain.EventPositionOpened, nil, map[string]any{"market_id": "m1"})

	batch, err := db.ClaimBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "trade.opened", batch[0].Event)
}

func TestNotifyEvent_UnmappedEventTypeIsDropped(t *testing.T) {
	db := newDB(t)
	d := dispatch.New(db, db, db, &fakeEmailSender{}, &fakeWebhookSender{}, fakeClock{now: time.Now()})

	d.NotifyEvent(context.Background(), "UNKNOWN_EVENT", nil, nil)

	batch, err := db.ClaimBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestRunWebhookWorkers_DeliversQueuedBatchThenStopsOnCancel(t *testing.T) {
	db := newDB(t)
	_, err := db.Create(context.Background(), domain.Webhook{OwnerEmail: "a@example.com", URL: "http://example.com/hook"})
	require.NoError(t, err)

	ws := &fakeWebhookSender{}
	d := dispatch.New(db, db, db, &fakeEmailSender{}, ws, fakeClock{now: time.Now()})
	d.NotifyEvent(context.Background(), domain.EventPositionOpened, nil, map[string]any{"market_id": "m1"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	d.RunWebhookWorkers(ctx, 2, 10, 10*time.Millisecond)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	assert.Len(t, ws.delivered, 1)
}

func TestNotifyEvent_EmailRespectsMinConfidenceAndCategory(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Upsert(context.Background(), domain.EmailPreference{
		OwnerEmail: "trader@example.com", AlertsEnabled: true, MinConfidence: 50,
		Categories: []string{"sports"}, MaxAlertsPerHour: 10,
	}))

	es := &fakeEmailSender{}
	d := dispatch.New(db, db, db, es, &fakeWebhookSender{}, fakeClock{now: time.Now()})

	d.NotifyEvent(context.Background(), domain.EventOrderRejected, nil, map[string]any{"confidence": 30.0, "category": "sports"})
	es.mu.Lock()
	assert.Empty(t, es.sent)
	es.mu.Unlock()

	d.NotifyEvent(context.Background(), domain.EventOrderRejected, nil, map[string]any{"confidence": 90.0, "category": "politics"})
	es.mu.Lock()
	assert.Empty(t, es.sent)
	es.mu.Unlock()

	d.NotifyEvent(context.Background(), domain.EventOrderRejected, nil, map[string]any{"confidence": 90.0, "category": "sports"})
	es.mu.Lock()
	assert.Len(t, es.sent, 1)
	es.mu.Unlock()
}

func TestFlushDigestQueue_ReturnsAndClearsQueuedEntries(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Upsert(context.Background(), domain.EmailPreference{
		OwnerEmail: "trader@example.com", AlertsEnabled: true, MinConfidence: 0,
		MaxAlertsPerHour: 1,
	}))

	d := dispatch.New(db, db, db, &fakeEmailSender{}, &fakeWebhookSender{}, fakeClock{now: time.Now()})

	// Low-confidence, low-edge signal events score "low" priority and always go to digest.
	d.NotifyEvent(context.Background(), domain.EventConfigChange, nil, map[string]any{"confidence": 10.0, "edge": 0.01})

	flushed := d.FlushDigestQueue("trader@example.com")
	assert.NotEmpty(t, flushed)

	assert.Empty(t, d.FlushDigestQueue("trader@example.com"))
}
