package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePriority_CriticalEventsBypassPayload(t *testing.T) {
	assert.Equal(t, PriorityCritical, ScorePriority(EventCircuitBreaker, nil))
	assert.Equal(t, PriorityCritical, ScorePriority(EventClobUnreachable, map[string]any{"edge": 0.01}))
}

func TestScorePriority_HighEvents(t *testing.T) {
	assert.Equal(t, PriorityHigh, ScorePriority(EventOrderRejected, nil))
	assert.Equal(t, PriorityHigh, ScorePriority(EventPositionAutoRepaired, nil))
}

func TestScorePriority_TradeEventsByMagnitude(t *testing.T) {
	assert.Equal(t, PriorityHigh, ScorePriority(EventPositionClosed, map[string]any{"pnl_usd": 75.0}))
	assert.Equal(t, PriorityHigh, ScorePriority(EventPositionOpened, map[string]any{"amount_usd": 150.0}))
	assert.Equal(t, PriorityHigh, ScorePriority(EventPositionClosed, map[string]any{"pnl_usd": -25.0}))
	assert.Equal(t, PriorityMedium, ScorePriority(EventPositionClosed, map[string]any{"pnl_usd": -5.0}))
}

func TestScorePriority_SignalEvents(t *testing.T) {
	assert.Equal(t, PriorityHigh, ScorePriority("signal.admitted", map[string]any{"edge": 0.2, "confidence": 50.0}))
	assert.Equal(t, PriorityHigh, ScorePriority("signal.admitted", map[string]any{"edge": 0.09, "confidence": 85.0}))
	// edge > 0.15 is checked before the low-confidence rule, so it wins even
	// though confidence is also low here.
	assert.Equal(t, PriorityHigh, ScorePriority("signal.admitted", map[string]any{"edge": 0.3, "confidence": 30.0}))
	assert.Equal(t, PriorityLow, ScorePriority("signal.admitted", map[string]any{"edge": 0.01, "confidence": 90.0}))
	assert.Equal(t, PriorityMedium, ScorePriority("signal.admitted", map[string]any{"edge": 0.05, "confidence": 60.0}))
}

func TestPriority_MultiplierAndFlags(t *testing.T) {
	assert.True(t, PriorityCritical.Unlimited())
	assert.False(t, PriorityLow.Unlimited())
	assert.True(t, PriorityLow.DigestOnly())
	assert.Equal(t, 3.0, PriorityHigh.Multiplier())
	assert.Equal(t, 1.0, PriorityMedium.Multiplier())
	assert.Equal(t, 0.0, PriorityLow.Multiplier())
}
