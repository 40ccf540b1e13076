package execlog_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/polysignal/internal/adapters/sqlitestore"
	"github.com/alejandrodnm/polysignal/internal/application/execlog"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLog_OpenCloseAndQuery(t *testing.T) {
	db := newDB(t)
	log := execlog.New(db)

	id, err := log.LogExecution(context.Background(), domain.Execution{
		SignalID: "sig-1", MarketID: "mkt-1", TokenID: "tok-1", Side: domain.SideUp,
		AmountUSD: 25, EntryPrice: 0.5, Category: "sports",
	})
	require.NoError(t, err)

	open, err := log.GetOpenCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	has, err := log.HasOpenPositionOnMarket(context.Background(), "mkt-1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, log.CloseExecution(context.Background(), id, 0.6, 5, 20, "take_profit"))

	open, err = log.GetOpenCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, open)

	onCooldown, err := log.IsMarketOnCooldown(context.Background(), "mkt-1", 5)
	require.NoError(t, err)
	assert.True(t, onCooldown)
}

func TestLog_CancelAllOpen(t *testing.T) {
	db := newDB(t)
	log := execlog.New(db)

	_, err := log.LogExecution(context.Background(), domain.Execution{SignalID: "a", MarketID: "m1", AmountUSD: 10, Category: "x"})
	require.NoError(t, err)
	_, err = log.LogExecution(context.Background(), domain.Execution{SignalID: "b", MarketID: "m2", AmountUSD: 10, Category: "x"})
	require.NoError(t, err)

	n, err := log.CancelAllOpen(context.Background(), "kill_switch")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
