package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// minPartialNotionalUSD is the floor below which a half-size partial exit is
// skipped for this tick rather than executed as a dust-sized trade (spec.md
// §4.9: "close half (minimum notional 0.10)").
const minPartialNotionalUSD = 0.10

// evaluate applies the ordered exit-rule chain from spec.md §4.9 to one open
// position, first match wins.
func (m *Monitor) evaluate(ctx context.Context, p *domain.Position, e domain.Execution, price float64, now time.Time) {
	p.UpdatePeak(price)

	entry := p.AvgPrice
	if entry <= 0 {
		return
	}
	pnlPct := (price - entry) / entry * 100
	drawdownFromPeak := 0.0
	if p.HighestPrice > 0 {
		drawdownFromPeak = (p.HighestPrice - price) / p.HighestPrice * 100
	}

	takeProfitPct, _ := m.cfg.Get(domain.KeyTakeProfitPct)
	stopLossPct, _ := m.cfg.Get(domain.KeyStopLossPct)
	trailingStopPct, _ := m.cfg.Get(domain.KeyTrailingStopPct)
	breakevenTriggerPct, _ := m.cfg.Get(domain.KeyBreakevenTriggerPct)
	maxHoldHours, _ := m.cfg.Get(domain.KeyMaxHoldHours)

	switch {
	case price >= 0.99:
		m.fullClose(ctx, p, e, price, pnlPct, "SETTLED_WIN", true)
	case price <= 0.01:
		m.fullClose(ctx, p, e, price, pnlPct, "SETTLED_LOSS", true)

	case takeProfitPct > 0 && pnlPct >= takeProfitPct && !p.PartialExitDone:
		m.partialTakeProfit(ctx, p, e, price, now)

	case takeProfitPct > 0 && p.PartialExitDone && pnlPct >= 1.5*takeProfitPct:
		m.fullClose(ctx, p, e, price, pnlPct, "TAKE_PROFIT_2", false)

	case stopLossPct < 0 && pnlPct <= stopLossPct:
		m.fullClose(ctx, p, e, price, pnlPct, "STOP_LOSS", false)

	case trailingStopPct > 0 && pnlPct > 0 && drawdownFromPeak >= trailingStopPct:
		m.fullClose(ctx, p, e, price, pnlPct, "TRAILING_STOP", false)

	default:
		if breakevenTriggerPct > 0 && pnlPct >= breakevenTriggerPct {
			p.BreakevenArmed = true
		}
		if p.BreakevenArmed && price <= entry {
			m.fullClose(ctx, p, e, price, pnlPct, "BREAKEVEN_STOP", false)
			return
		}
		if maxHoldHours > 0 && now.Sub(p.EnteredAt).Hours() >= maxHoldHours {
			m.fullClose(ctx, p, e, price, pnlPct, "MAX_HOLD_TIME", false)
		}
	}
}

func (m *Monitor) partialTakeProfit(ctx context.Context, p *domain.Position, e domain.Execution, price float64, now time.Time) {
	halfShares := p.CurrentShares / 2
	if halfShares*price < minPartialNotionalUSD {
		return
	}

	pnl, ok := p.PartialExit(halfShares, price, now)
	if !ok {
		return
	}
	p.BreakevenArmed = true

	m.audit.LogEvent(ctx, domain.EventPartialExit, &e.ID, map[string]any{
		"market_id": e.MarketID, "price": price, "shares": halfShares, "pnl_usd": pnl,
	}, e.DryRun)
}

// fullClose closes the remaining position, updates the Execution and Risk
// Manager, places the offsetting SELL order when live (skipped on
// settlement), and removes the position from the ledger.
func (m *Monitor) fullClose(ctx context.Context, p *domain.Position, e domain.Execution, price, pnlPct float64, reason string, settlement bool) {
	remainingShares := p.CurrentShares
	pnl, ok := p.Close(price, reason, m.clock.Now())
	if !ok {
		return
	}

	if err := m.execLog.CloseExecution(ctx, e.ID, price, pnl, pnlPct, reason); err != nil {
		slog.Warn("monitor: close execution failed", "execution_id", e.ID, "error", err)
	}
	if err := m.risk.RecordTradeClose(ctx, e.Category, e.AmountUSD, pnl); err != nil {
		slog.Warn("monitor: record trade close failed", "execution_id", e.ID, "error", err)
	}

	if m.opts.Live && !settlement && remainingShares > 0 {
		_, err := m.clob.PlaceOrder(ctx, domain.PlaceOrderRequest{
			TokenID: p.TokenID, Side: domain.ClobSell, Price: price, Size: remainingShares,
		})
		if err != nil {
			slog.Warn("monitor: sell order failed", "execution_id", e.ID, "error", err)
		}
	}

	m.audit.LogEvent(ctx, domain.EventPositionClosed, &e.ID, map[string]any{
		"market_id": e.MarketID, "price": price, "pnl_usd": pnl, "pnl_pct": pnlPct, "reason": reason,
	}, e.DryRun)

	m.ledger.Acknowledge(p.PositionID)

	if err := m.bot.NotifyOpenCount(ctx, m.ledger.Count()); err != nil {
		slog.Warn("monitor: notify open count failed", "error", err)
	}
}
