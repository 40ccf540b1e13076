package riskmgr_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/polysignal/internal/adapters/sqlitestore"
	"github.com/alejandrodnm/polysignal/internal/application/riskmgr"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfig struct {
	values map[string]float64
}

func (f fakeConfig) Get(key string) (float64, bool) {
	v, ok := f.values[key]
	return v, ok
}

type fakeBotControl struct {
	allowed     bool
	transitions []domain.BotState
}

func (f *fakeBotControl) AllowsNewTrades() bool { return f.allowed }
func (f *fakeBotControl) Transition(_ context.Context, to domain.BotState, _ string) error {
	f.transitions = append(f.transitions, to)
	f.allowed = to.AllowsNewTrades()
	return nil
}

func newDB(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCanTrade_BlockedByBotControl(t *testing.T) {
	db := newDB(t)
	bot := &fakeBotControl{allowed: false}
	m, err := riskmgr.New(context.Background(), db, db, fakeConfig{}, bot)
	require.NoError(t, err)

	dec := m.CanTrade("sports")
	assert.False(t, dec.Allowed)
	assert.Equal(t, "bot_control_blocked", dec.Reason)
}

func TestCanTrade_BlockedByMaxOpenPositions(t *testing.T) {
	db := newDB(t)
	bot := &fakeBotControl{allowed: true}
	cfg := fakeConfig{values: map[string]float64{domain.KeyMaxOpenPositions: 1}}
	m, err := riskmgr.New(context.Background(), db, db, cfg, bot)
	require.NoError(t, err)

	m.RecordTradeOpen("sports", 25)
	dec := m.CanTrade("sports")
	assert.False(t, dec.Allowed)
	assert.Equal(t, "max_open_positions", dec.Reason)
}

func TestGetBetSize_ScalesWithEdgeAndClampsToMax(t *testing.T) {
	db := newDB(t)
	bot := &fakeBotControl{allowed: true}
	cfg := fakeConfig{values: map[string]float64{domain.KeyMaxBetUSD: 100}}
	m, err := riskmgr.New(context.Background(), db, db, cfg, bot)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, m.GetBetSize(0.5), 1e-9)
	assert.InDelta(t, 100.0, m.GetBetSize(5.0), 1e-9)
	assert.InDelta(t, 10.0, m.GetBetSize(-1.0), 1e-9)
}

func TestRecordTradeClose_TripsCircuitBreakerOnDailyLossLimit(t *testing.T) {
	db := newDB(t)
	bot := &fakeBotControl{allowed: true}
	cfg := fakeConfig{values: map[string]float64{domain.KeyDailyLossLimitUSD: 50}}
	m, err := riskmgr.New(context.Background(), db, db, cfg, bot)
	require.NoError(t, err)

	m.RecordTradeOpen("sports", 25)
	require.NoError(t, m.RecordTradeClose(context.Background(), "sports", 25, -60))

	assert.InDelta(t, -60.0, m.DailyPnLUSD(), 1e-9)
	require.Len(t, bot.transitions, 1)
	assert.Equal(t, domain.BotPaused, bot.transitions[0])

	events, err := db.Query(context.Background(), domain.EventCircuitBreaker, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNew_ReconcilesOpenPositionsFromStore(t *testing.T) {
	db := newDB(t)
	_, err := db.LogExecution(context.Background(), domain.Execution{
		SignalID: "s1", MarketID: "m1", TokenID: "t1", Side: domain.SideUp,
		AmountUSD: 25, EntryPrice: 0.5, Category: "sports",
	})
	require.NoError(t, err)

	bot := &fakeBotControl{allowed: true}
	m, err := riskmgr.New(context.Background(), db, db, fakeConfig{}, bot)
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenPositions())
	assert.InDelta(t, 25.0, m.TotalExposureUSD(), 1e-9)
}
