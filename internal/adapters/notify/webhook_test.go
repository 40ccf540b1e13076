package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/polysignal/internal/adapters/notify"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_Deliver_Success(t *testing.T) {
	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := notify.NewWebhookSender()
	err := s.Deliver(context.Background(), domain.Webhook{URL: srv.URL}, domain.EventPayload{
		Event: "position.opened", Timestamp: time.Now(), Data: map[string]any{"market_id": "m1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "position.opened", gotEvent)
}

func TestWebhookSender_Deliver_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := notify.NewWebhookSender()
	err := s.Deliver(context.Background(), domain.Webhook{URL: srv.URL}, domain.EventPayload{Event: "x"})
	assert.Error(t, err)
}
