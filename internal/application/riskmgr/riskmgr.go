// Package riskmgr implements the Risk Manager (spec.md §4.3): in-memory
// counters reconciled from the Persistent Store on startup, gating every
// trade admission and tripping a circuit breaker on excessive daily loss.
package riskmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// ConfigSource is the narrow slice of the Config Store the risk manager
// reads from, mirroring the teacher's narrow-port style rather than a
// dependency on the whole application/configstore package.
type ConfigSource interface {
	Get(key string) (float64, bool)
}

// BotControl is the narrow slice of the Bot Control state machine the risk
// manager needs: reading whether new trades are allowed, and tripping the
// breaker by forcing a transition to paused.
type BotControl interface {
	AllowsNewTrades() bool
	Transition(ctx context.Context, to domain.BotState, reason string) error
}

// Manager is the Risk Manager. All counters are protected by mu; they are
// mutated only by this component (spec.md §5: "shared state ... is mutated
// only by the component that owns it").
type Manager struct {
	store ports.ExecutionStore
	audit ports.AuditStore
	cfg   ConfigSource
	bot   BotControl

	mu               sync.Mutex
	openPositions    int
	dailyPnLUSD      float64
	categoryExposure map[string]float64
	totalExposureUSD float64
}

// New reconciles open_positions and exposure from the Persistent Store's
// count of open executions (spec.md §4.3: "On startup, open_positions is
// reconciled from the Persistent Store").
func New(ctx context.Context, store ports.ExecutionStore, audit ports.AuditStore, cfg ConfigSource, bot BotControl) (*Manager, error) {
	m := &Manager{
		store:            store,
		audit:            audit,
		cfg:              cfg,
		bot:              bot,
		categoryExposure: make(map[string]float64),
	}

	openCount, err := store.GetOpenCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("riskmgr.New: open count: %w", err)
	}
	m.openPositions = openCount

	total, err := store.GetTotalOpenExposure(ctx)
	if err != nil {
		return nil, fmt.Errorf("riskmgr.New: total exposure: %w", err)
	}
	m.totalExposureUSD = total

	byCategory, err := store.GetOpenExposureByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("riskmgr.New: category exposure: %w", err)
	}
	m.categoryExposure = byCategory

	return m, nil
}

// TradeDecision is the result of CanTrade.
type TradeDecision struct {
	Allowed bool
	Reason  string
}

// CanTrade evaluates admission against every risk limit in spec.md §4.3, in
// order, short-circuiting on the first violation.
func (m *Manager) CanTrade(category string) TradeDecision {
	if !m.bot.AllowsNewTrades() {
		return TradeDecision{Reason: "bot_control_blocked"}
	}

	maxOpen, _ := m.cfg.Get(domain.KeyMaxOpenPositions)
	dailyLossLimit, _ := m.cfg.Get(domain.KeyDailyLossLimitUSD)
	maxExposure, _ := m.cfg.Get(domain.KeyMaxTotalExposureUSD)
	maxCategoryPct, _ := m.cfg.Get(domain.KeyMaxCategoryConcentration)

	m.mu.Lock()
	defer m.mu.Unlock()

	if maxOpen > 0 && float64(m.openPositions) >= maxOpen {
		return TradeDecision{Reason: "max_open_positions"}
	}
	if dailyLossLimit > 0 && m.dailyPnLUSD <= -dailyLossLimit {
		return TradeDecision{Reason: "daily_loss_limit"}
	}
	if maxExposure > 0 && m.totalExposureUSD >= maxExposure {
		return TradeDecision{Reason: "max_total_exposure"}
	}
	if maxCategoryPct > 0 && maxExposure > 0 {
		projected := m.categoryExposure[category]
		share := (projected / maxExposure) * 100
		if share >= maxCategoryPct {
			return TradeDecision{Reason: "max_category_concentration"}
		}
	}

	return TradeDecision{Allowed: true}
}

// GetBetSize scales linearly with edge, clamped to max_bet_usd (spec.md
// §4.3). A zero/negative edge still yields the floor of one tenth of the
// cap, matching the Bridge's Kelly-style sizing input.
func (m *Manager) GetBetSize(edge float64) float64 {
	maxBet, ok := m.cfg.Get(domain.KeyMaxBetUSD)
	if !ok || maxBet <= 0 {
		maxBet = domain.DefaultValues()[domain.KeyMaxBetUSD]
	}
	if edge < 0 {
		edge = 0
	}
	size := maxBet * edge
	if size > maxBet {
		size = maxBet
	}
	if size < maxBet*0.1 {
		size = maxBet * 0.1
	}
	return size
}

// RecordTradeOpen increments the open counter and the exposure maps. Called
// by the Bridge immediately after an Execution is logged.
func (m *Manager) RecordTradeOpen(category string, amountUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions++
	m.totalExposureUSD += amountUSD
	m.categoryExposure[category] += amountUSD
}

// RecordTradeClose decrements counters, updates daily P&L, and trips the
// circuit breaker when the daily loss limit is crossed (spec.md §4.3).
func (m *Manager) RecordTradeClose(ctx context.Context, category string, amountUSD, pnlUSD float64) error {
	m.mu.Lock()
	if m.openPositions > 0 {
		m.openPositions--
	}
	m.totalExposureUSD -= amountUSD
	if m.totalExposureUSD < 0 {
		m.totalExposureUSD = 0
	}
	if m.categoryExposure[category] > 0 {
		m.categoryExposure[category] -= amountUSD
		if m.categoryExposure[category] < 0 {
			m.categoryExposure[category] = 0
		}
	}
	m.dailyPnLUSD += pnlUSD
	dailyPnL := m.dailyPnLUSD
	m.mu.Unlock()

	dailyLossLimit, _ := m.cfg.Get(domain.KeyDailyLossLimitUSD)
	if dailyLossLimit > 0 && dailyPnL <= -dailyLossLimit {
		return m.tripCircuitBreaker(ctx, dailyPnL, dailyLossLimit)
	}
	return nil
}

func (m *Manager) tripCircuitBreaker(ctx context.Context, dailyPnL, limit float64) error {
	if m.audit != nil {
		_, _ = m.audit.Append(ctx, domain.AuditEvent{
			EventType: domain.EventCircuitBreaker,
			Detail:    map[string]any{"daily_pnl_usd": dailyPnL, "daily_loss_limit_usd": limit},
		})
	}
	if err := m.bot.Transition(ctx, domain.BotPaused, "circuit_breaker"); err != nil {
		return fmt.Errorf("riskmgr.tripCircuitBreaker: %w", err)
	}
	return nil
}

// OpenPositions returns the current reconciled open-trade count.
func (m *Manager) OpenPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPositions
}

// TotalExposureUSD returns the current reconciled total open exposure.
func (m *Manager) TotalExposureUSD() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalExposureUSD
}

// DailyPnLUSD returns the running daily realized P&L.
func (m *Manager) DailyPnLUSD() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnLUSD
}

// ResetDaily clears the daily P&L counter. Nothing in this module calls it,
// so the counter is not reset automatically at a day boundary.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnLUSD = 0
}
