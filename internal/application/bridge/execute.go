package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

func (b *Bridge) executeDryRun(ctx context.Context, signal domain.Signal, trace []domain.GateResult, betSize float64, tokenID string) {
	now := b.clock.Now()
	exec := domain.Execution{
		SignalID:     signal.SignalID,
		MarketID:     signal.MarketID,
		TokenID:      tokenID,
		Side:         signal.Side,
		AmountUSD:    betSize,
		EntryPrice:   signal.Price(),
		Status:       domain.ExecutionOpen,
		DryRun:       true,
		Edge:         signal.Edge(),
		Confidence:   signal.Confidence,
		Category:     signal.Category,
		Regime:       signal.Regime,
		SizingMethod: "edge_linear",
		OpenedAt:     now,
	}

	execID, err := b.execLog.LogExecution(ctx, exec)
	if err != nil {
		slog.Warn("bridge: log dry-run execution failed", "signal_id", signal.SignalID, "error", err)
		b.block(ctx, signal, trace)
		return
	}

	if b.opts.CSVSink != nil {
		if err := b.opts.CSVSink.Append(now, signal, tokenID, betSize); err != nil {
			slog.Warn("bridge: csv sink append failed", "signal_id", signal.SignalID, "error", err)
		}
	}

	b.risk.RecordTradeOpen(signal.Category, betSize)
	b.ledger.Register(newFilledPosition(execID, signal.MarketID, tokenID, signal.Side, signal.Price(), betSize, now))

	b.audit.LogEvent(ctx, domain.EventPositionOpened, &execID, map[string]any{
		"market_id": signal.MarketID, "category": signal.Category, "amount_usd": betSize,
		"confidence": signal.Confidence, "edge": signal.Edge(), "dry_run": true,
	}, true)

	if _, err := b.decisions.RecordOutcome(ctx, signal, domain.OutcomeDryRun, signalScores(signal), trace); err != nil {
		slog.Warn("bridge: record dry-run decision failed", "signal_id", signal.SignalID, "error", err)
	}
}

func (b *Bridge) executeLive(ctx context.Context, signal domain.Signal, trace []domain.GateResult, betSize float64, tokenID string) {
	now := b.clock.Now()

	placed, placeErr := b.clob.PlaceOrder(ctx, domain.PlaceOrderRequest{
		TokenID: tokenID, Side: domain.ClobBuy, Price: signal.Price(), Size: betSize,
		ClientOrderID: "sig-" + signal.SignalID,
	})

	exec := domain.Execution{
		SignalID:     signal.SignalID,
		MarketID:     signal.MarketID,
		TokenID:      tokenID,
		Side:         signal.Side,
		AmountUSD:    betSize,
		EntryPrice:   signal.Price(),
		Status:       domain.ExecutionOpen,
		DryRun:       false,
		Edge:         signal.Edge(),
		Confidence:   signal.Confidence,
		Category:     signal.Category,
		Regime:       signal.Regime,
		SizingMethod: "edge_linear",
		OrderID:      placed.OrderID,
		OpenedAt:     now,
	}

	execID, err := b.execLog.LogExecution(ctx, exec)
	if err != nil {
		slog.Warn("bridge: log live execution failed", "signal_id", signal.SignalID, "error", err)
		b.block(ctx, signal, trace)
		return
	}

	// The position enters the ledger PENDING the moment an order is placed
	// and only leaves PENDING once a fill outcome (or rejection) is known.
	// This is the real window SweepExpiredPending guards: a process restart
	// or a stuck CLOB confirmation between here and finishFill/rejection.
	pos := domain.NewPosition(fmt.Sprintf("pos-%d", execID), execID, signal.MarketID, tokenID, signal.Side, now)
	b.ledger.Register(pos)

	rejected := placeErr != nil || placed.Error != ""
	if rejected {
		reason := placed.Error
		if placeErr != nil {
			reason = placeErr.Error()
		}
		if err := b.execLog.FailExecution(ctx, execID, reason); err != nil {
			slog.Warn("bridge: fail rejected execution failed", "execution_id", execID, "error", err)
		}
		pos.Cancel(reason, b.clock.Now())
		b.audit.LogEvent(ctx, domain.EventOrderRejected, &execID, map[string]any{"reason": reason}, false)
		if _, err := b.decisions.RecordOutcome(ctx, signal, domain.OutcomeBlocked, signalScores(signal), trace); err != nil {
			slog.Warn("bridge: record rejected decision failed", "signal_id", signal.SignalID, "error", err)
		}
		return
	}

	b.invalidateBalance()
	b.risk.RecordTradeOpen(signal.Category, betSize)
	b.audit.LogEvent(ctx, domain.EventOrderPlaced, &execID, map[string]any{
		"market_id": signal.MarketID, "order_id": placed.OrderID, "amount_usd": betSize,
	}, false)

	if _, err := b.decisions.RecordOutcome(ctx, signal, domain.OutcomeExecuted, signalScores(signal), trace); err != nil {
		slog.Warn("bridge: record executed decision failed", "signal_id", signal.SignalID, "error", err)
	}

	b.pollFill(ctx, execID, placed.OrderID, signal, tokenID, betSize)
}

// pollFill blocks until the placed order reaches a terminal state or the
// poll window elapses, then resolves the PENDING position executeLive
// registered and, on a
// partial or failed fill, records the corresponding audit event (spec.md
// §4.8). Processing one signal's live path end to end before returning to
// Evaluate matches the bridge's per-market serialization.
func (b *Bridge) pollFill(ctx context.Context, execID int64, orderID string, signal domain.Signal, tokenID string, betSize float64) {
	deadline := b.clock.Now().Add(b.opts.MaxPollWindow)
	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		state, err := b.clob.GetOrder(ctx, orderID)
		if err != nil {
			slog.Warn("bridge: poll order failed", "order_id", orderID, "error", err)
		} else if outcome, done := classifyFill(state); done {
			b.finishFill(ctx, execID, signal, tokenID, outcome, state, betSize)
			return
		}

		if b.clock.Now().After(deadline) {
			b.finishFill(ctx, execID, signal, tokenID, domain.FillTimeout, state, betSize)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// classifyFill maps one GET /order/{id} response to a terminal FillOutcome.
// done is false while the order is still live with nothing matched yet.
func classifyFill(state domain.OrderState) (domain.FillOutcome, bool) {
	switch state.Status {
	case domain.ClobMatched:
		return domain.FillFilled, true
	case domain.ClobCancelled, domain.ClobRejected:
		return domain.FillRejected, true
	case domain.ClobExpired:
		return domain.FillExpired, true
	case domain.ClobLive:
		if state.SizeMatched > 0 && state.SizeRemaining > 0 {
			return domain.FillPartial, true
		}
		return "", false
	default:
		return "", false
	}
}

func (b *Bridge) finishFill(ctx context.Context, execID int64, signal domain.Signal, tokenID string, outcome domain.FillOutcome, state domain.OrderState, betSize float64) {
	now := b.clock.Now()
	pos := b.ledger.Get(fmt.Sprintf("pos-%d", execID))

	switch outcome {
	case domain.FillFilled:
		price, shares := fillSize(state, signal)
		enterPosition(pos, price, shares*price, now)

	case domain.FillPartial:
		price, shares := fillSize(state, signal)
		enterPosition(pos, price, shares*price, now)
		b.audit.LogEvent(ctx, domain.EventOrderPartialFill, &execID, map[string]any{
			"size_matched": state.SizeMatched, "size_remaining": state.SizeRemaining,
		}, false)

	case domain.FillRejected, domain.FillExpired:
		if err := b.execLog.FailExecution(ctx, execID, string(outcome)); err != nil {
			slog.Warn("bridge: fail unfilled execution failed", "execution_id", execID, "error", err)
		}
		if pos != nil {
			pos.Cancel(string(outcome), now)
		}
		b.audit.LogEvent(ctx, domain.EventOrderFillError, &execID, map[string]any{"outcome": string(outcome)}, false)

	case domain.FillTimeout:
		// Best-effort: the order may still fill after we stop watching it.
		// Enter optimistically so the Settlement Monitor picks it up and
		// reconciles the true fill state on its next mark-price pass.
		enterPosition(pos, signal.Price(), betSize, now)
		b.audit.LogEvent(ctx, domain.EventOrderFillError, &execID, map[string]any{"outcome": string(outcome)}, false)
	}
}

// enterPosition transitions a PENDING position into ENTERED once a fill
// price and size are known. pos is nil only if the position was already
// swept or acknowledged out from under the poller; that is a no-op here.
func enterPosition(pos *domain.Position, price, amountUSD float64, now time.Time) {
	if pos == nil {
		return
	}
	pos.Transition(domain.StateEntered, "filled", now)
	if price > 0 {
		shares := amountUSD / price
		pos.AvgPrice = price
		pos.InitialShares = shares
		pos.CurrentShares = shares
	}
}

// newFilledPosition builds an ENTERED position directly: by the time a fill
// (or a dry-run acceptance) is known, the position has already left PENDING
// in substance, and the Settlement Monitor's rehydrate pass would otherwise
// have to promote it on its very next tick.
func newFilledPosition(execID int64, marketID, tokenID string, side domain.Side, price, amountUSD float64, now time.Time) *domain.Position {
	p := domain.NewPosition(fmt.Sprintf("pos-%d", execID), execID, marketID, tokenID, side, now)
	p.Transition(domain.StateEntered, "filled", now)
	if price > 0 {
		shares := amountUSD / price
		p.AvgPrice = price
		p.InitialShares = shares
		p.CurrentShares = shares
	}
	return p
}

// fillSize picks the best available fill price/size pair from an order
// state, falling back to the signal's quoted price when the venue omits an
// average price.
func fillSize(state domain.OrderState, signal domain.Signal) (price, shares float64) {
	price = state.AveragePrice
	if price <= 0 {
		price = signal.Price()
	}
	shares = state.SizeMatched
	return price, shares
}
