package lifecycle_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/polysignal/internal/application/lifecycle"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestManager_RegisterGetAcknowledge(t *testing.T) {
	m := lifecycle.New()
	now := time.Now()
	p := domain.NewPosition("pos-1", 1, "mkt-1", "tok-1", domain.SideUp, now)
	m.Register(p)

	assert.Equal(t, 1, m.Count())
	assert.Same(t, p, m.Get("pos-1"))

	assert.False(t, m.Acknowledge("pos-1"))

	p.Transition(domain.StateEntered, "filled", now)
	_, ok := p.Close(0.6, "take_profit", now)
	assert.True(t, ok)

	assert.True(t, m.Acknowledge("pos-1"))
	assert.Equal(t, 0, m.Count())
}

func TestManager_SweepExpiredPending(t *testing.T) {
	m := lifecycle.New()
	now := time.Now()
	stale := domain.NewPosition("pos-1", 1, "mkt-1", "tok-1", domain.SideUp, now.Add(-10*time.Minute))
	fresh := domain.NewPosition("pos-2", 2, "mkt-2", "tok-2", domain.SideUp, now)
	m.Register(stale)
	m.Register(fresh)

	expired := m.SweepExpiredPending(now)
	require := assert.New(t)
	require.Len(expired, 1)
	require.Equal("pos-1", expired[0].PositionID)
	require.Equal(domain.StateCancelled, stale.State)
	require.Equal(domain.StatePending, fresh.State)
}
