package ingest_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/polysignal/internal/adapters/ingest"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{
	"rec": {"action":"ENTER","strength":"STRONG","side":"UP","phase":"LATE"},
	"signal": "sig-1",
	"marketId": "mkt-1",
	"market": {
		"slug":"will-it-rain","question":"Will it rain?","category":"weather",
		"settlementLeftMin":120,
		"orderbook":{"up":{"spread":0.02},"down":{"spread":0.03}}
	},
	"poly": {"tokens":{"upTokenId":"T1","downTokenId":"T2"}},
	"prices": {"up":0.62,"down":0.38,"spot":0.60},
	"edge": {"edgeUp":0.12,"edgeDown":-0.02},
	"confidence": 75,
	"correlation": 0.4,
	"regimeInfo": "trend",
	"kelly": 0.08
}`

func TestHandleSignal_DecodesAndBuffersDomainSignal(t *testing.T) {
	srv := ingest.NewServer(4)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/signals", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 202, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sig, err := srv.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, "sig-1", sig.SignalID)
	assert.Equal(t, "mkt-1", sig.MarketID)
	assert.Equal(t, domain.ActionEnter, sig.Action)
	assert.Equal(t, domain.StrengthStrong, sig.Strength)
	assert.Equal(t, domain.SideUp, sig.Side)
	assert.Equal(t, "T1", sig.UpTokenID)
	assert.Equal(t, 0.12, sig.EdgeUp)
	assert.True(t, sig.Qualifies())
}

func TestHandleSignal_InvalidJSONRejected(t *testing.T) {
	srv := ingest.NewServer(4)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/signals", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestNext_ReturnsContextErrorOnCancellation(t *testing.T) {
	srv := ingest.NewServer(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := srv.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
