package decisions_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/polysignal/internal/adapters/sqlitestore"
	"github.com/alejandrodnm/polysignal/internal/application/decisions"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func newDB(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordOutcome_DerivesNearMiss(t *testing.T) {
	db := newDB(t)
	tr := decisions.New(db, fakeClock{now: time.Now()})

	trace := []domain.GateResult{
		{Name: "dedup", Passed: true},
		{Name: "cooldown", Passed: true},
		{Name: "risk", Passed: false, Detail: "max_open_positions"},
	}
	_, err := tr.RecordOutcome(context.Background(), domain.Signal{SignalID: "s1", MarketID: "m1"}, domain.OutcomeBlocked, nil, trace)
	require.NoError(t, err)

	misses, err := tr.NearMisses(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, misses, 1)
	assert.Equal(t, "risk", misses[0].BlockingGate)
	assert.True(t, misses[0].NearMiss())
}

func TestFilterCost_CountsPerBlockingGate(t *testing.T) {
	db := newDB(t)
	tr := decisions.New(db, fakeClock{now: time.Now()})

	for _, gate := range []string{"risk", "risk", "cooldown"} {
		trace := []domain.GateResult{{Name: gate, Passed: false}}
		_, err := tr.RecordOutcome(context.Background(), domain.Signal{SignalID: "s", MarketID: "m"}, domain.OutcomeBlocked, nil, trace)
		require.NoError(t, err)
	}

	cost, err := tr.FilterCost(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, cost["risk"])
	assert.Equal(t, 1, cost["cooldown"])
}
