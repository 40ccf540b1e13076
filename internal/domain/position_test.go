package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_AllowedEdges(t *testing.T) {
	assert.True(t, CanTransition(StatePending, StateEntered))
	assert.True(t, CanTransition(StatePending, StateCancelled))
	assert.True(t, CanTransition(StateEntered, StatePartialExit))
	assert.True(t, CanTransition(StatePartialExit, StateEntered))
	assert.True(t, CanTransition(StateHedged, StateClosed))
}

func TestCanTransition_ForbiddenEdges(t *testing.T) {
	assert.False(t, CanTransition(StatePending, StateClosed))
	assert.False(t, CanTransition(StateClosed, StateEntered))
	assert.False(t, CanTransition(StateCancelled, StatePending))
	assert.False(t, CanTransition(StateEntered, StatePending))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateClosed))
	assert.True(t, IsTerminal(StateCancelled))
	assert.False(t, IsTerminal(StateEntered))
}

func TestPosition_TransitionRejectsInvalidEdge(t *testing.T) {
	now := time.Now()
	p := NewPosition("pos-1", 1, "m1", "t1", SideUp, now)
	require.True(t, p.Transition(StateEntered, "filled", now))
	ok := p.Transition(StatePending, "bogus", now)
	assert.False(t, ok)
	assert.Equal(t, StateEntered, p.State)
}

func TestPosition_ScaleInWeightedAverage(t *testing.T) {
	now := time.Now()
	p := NewPosition("pos-1", 1, "m1", "t1", SideUp, now)
	require.True(t, p.Transition(StateEntered, "filled", now))
	p.CurrentShares = 10
	p.AvgPrice = 0.50

	require.True(t, p.ScaleIn(10, 0.60, now))
	assert.InDelta(t, 0.55, p.AvgPrice, 1e-9)
	assert.Equal(t, 20.0, p.CurrentShares)
	assert.Equal(t, StateScaling, p.State)
}

func TestPosition_RealizePnL_SideSign(t *testing.T) {
	now := time.Now()
	up := NewPosition("pos-up", 1, "m1", "t1", SideUp, now)
	up.AvgPrice = 0.50
	pnl := up.RealizePnL(0.60, 100)
	assert.InDelta(t, 10.0, pnl, 1e-9)

	down := NewPosition("pos-down", 2, "m1", "t2", SideDown, now)
	down.AvgPrice = 0.50
	pnl = down.RealizePnL(0.60, 100)
	assert.InDelta(t, -10.0, pnl, 1e-9)
}

func TestPosition_PartialExitThenClose(t *testing.T) {
	now := time.Now()
	p := NewPosition("pos-1", 1, "m1", "t1", SideUp, now)
	require.True(t, p.Transition(StateEntered, "filled", now))
	p.CurrentShares = 100
	p.AvgPrice = 0.50

	pnl, ok := p.PartialExit(50, 0.58, now)
	require.True(t, ok)
	assert.InDelta(t, 4.0, pnl, 1e-9)
	assert.Equal(t, 50.0, p.CurrentShares)
	assert.True(t, p.PartialExitDone)
	assert.Equal(t, StatePartialExit, p.State)

	pnl2, ok := p.Close(0.60, "take_profit_2", now)
	require.True(t, ok)
	assert.InDelta(t, 5.0, pnl2, 1e-9)
	assert.Equal(t, 0.0, p.CurrentShares)
	assert.Equal(t, StateClosed, p.State)
	assert.True(t, IsTerminal(p.State))
}

func TestPosition_CannotExitMoreThanHeld(t *testing.T) {
	now := time.Now()
	p := NewPosition("pos-1", 1, "m1", "t1", SideUp, now)
	require.True(t, p.Transition(StateEntered, "filled", now))
	p.CurrentShares = 10
	_, ok := p.PartialExit(20, 0.5, now)
	assert.False(t, ok)
}

func TestPosition_EventLogBounded(t *testing.T) {
	now := time.Now()
	p := NewPosition("pos-1", 1, "m1", "t1", SideUp, now)
	require.True(t, p.Transition(StateEntered, "filled", now))
	for i := 0; i < 80; i++ {
		p.Transition(StateScaling, "scale", now)
		p.Transition(StateEntered, "back", now)
	}
	assert.LessOrEqual(t, len(p.Events), maxEventLog)
}

func TestPosition_IsExpiredPending(t *testing.T) {
	now := time.Now()
	p := NewPosition("pos-1", 1, "m1", "t1", SideUp, now.Add(-6*time.Minute))
	assert.True(t, p.IsExpiredPending(now))

	fresh := NewPosition("pos-2", 1, "m1", "t1", SideUp, now)
	assert.False(t, fresh.IsExpiredPending(now))
}
