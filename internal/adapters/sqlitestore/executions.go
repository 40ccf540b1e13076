package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// LogExecution inserts a new open trade_executions row.
func (s *Store) LogExecution(ctx context.Context, e domain.Execution) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_executions
			(signal_id, market_id, token_id, side, amount_usd, entry_price,
			 status, dry_run, order_id, edge, confidence, quality_score,
			 regime, category, sizing_method, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, 'open', ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.SignalID, e.MarketID, e.TokenID, string(e.Side), e.AmountUSD, e.EntryPrice,
		boolToInt(e.DryRun), e.OrderID, e.Edge, e.Confidence, e.QualityScore,
		e.Regime, e.Category, e.SizingMethod, e.OpenedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.LogExecution: %w", err)
	}
	return res.LastInsertId()
}

// CloseExecution marks an open execution closed with realized P&L.
func (s *Store) CloseExecution(ctx context.Context, id int64, exitPrice, pnlUSD, pnlPct float64, closeReason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_executions
		SET status = 'closed', exit_price = ?, pnl_usd = ?, pnl_pct = ?,
		    close_reason = ?, closed_at = ?
		WHERE id = ? AND status = 'open'
	`, exitPrice, pnlUSD, pnlPct, closeReason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlitestore.CloseExecution: %w", err)
	}
	return requireRowsAffected(res, "sqlitestore.CloseExecution", id)
}

// FailExecution marks an execution failed, recording the error as the
// close reason.
func (s *Store) FailExecution(ctx context.Context, id int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_executions
		SET status = 'failed', close_reason = ?, closed_at = ?
		WHERE id = ? AND status = 'open'
	`, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlitestore.FailExecution: %w", err)
	}
	return requireRowsAffected(res, "sqlitestore.FailExecution", id)
}

// CancelExecution marks a single open execution cancelled.
func (s *Store) CancelExecution(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_executions
		SET status = 'cancelled', close_reason = ?, closed_at = ?
		WHERE id = ? AND status = 'open'
	`, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlitestore.CancelExecution: %w", err)
	}
	return requireRowsAffected(res, "sqlitestore.CancelExecution", id)
}

// CancelAllOpen cancels every open execution, used by the kill switch.
func (s *Store) CancelAllOpen(ctx context.Context, reason string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_executions
		SET status = 'cancelled', close_reason = ?, closed_at = ?
		WHERE status = 'open'
	`, reason, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.CancelAllOpen: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const executionCols = `
	id, signal_id, market_id, token_id, side, amount_usd, entry_price,
	fill_price, exit_price, pnl_usd, pnl_pct, status, dry_run, order_id,
	edge, confidence, quality_score, regime, category, sizing_method,
	slippage_bps, close_reason, opened_at, closed_at
`

func scanExecution(row interface{ Scan(...any) error }) (domain.Execution, error) {
	var e domain.Execution
	var side, status string
	var dryRun int
	var opened time.Time
	var closed sql.NullTime
	err := row.Scan(
		&e.ID, &e.SignalID, &e.MarketID, &e.TokenID, &side, &e.AmountUSD, &e.EntryPrice,
		&e.FillPrice, &e.ExitPrice, &e.PnLUSD, &e.PnLPct, &status, &dryRun, &e.OrderID,
		&e.Edge, &e.Confidence, &e.QualityScore, &e.Regime, &e.Category, &e.SizingMethod,
		&e.SlippageBps, &e.CloseReason, &opened, &closed,
	)
	if err != nil {
		return domain.Execution{}, err
	}
	e.Side = domain.Side(side)
	e.Status = domain.ExecutionStatus(status)
	e.DryRun = dryRun == 1
	e.OpenedAt = opened
	if closed.Valid {
		e.ClosedAt = &closed.Time
	}
	return e, nil
}

// GetOpen returns every execution still in the open state.
func (s *Store) GetOpen(ctx context.Context) ([]domain.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+executionCols+` FROM trade_executions WHERE status = 'open' ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetOpen: %w", err)
	}
	defer rows.Close()

	var out []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore.GetOpen: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetBySignal returns every execution created from a given signal id.
func (s *Store) GetBySignal(ctx context.Context, signalID string) ([]domain.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+executionCols+` FROM trade_executions WHERE signal_id = ? ORDER BY opened_at`, signalID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetBySignal: %w", err)
	}
	defer rows.Close()

	var out []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore.GetBySignal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HasOpenPositionOnMarket reports whether any open execution targets the
// given market, used by the one-position-per-market gate.
func (s *Store) HasOpenPositionOnMarket(ctx context.Context, marketID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_executions WHERE market_id = ? AND status = 'open'`, marketID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlitestore.HasOpenPositionOnMarket: %w", err)
	}
	return n > 0, nil
}

// IsMarketOnCooldown reports whether a market had any execution closed
// within the cooldown window, used by the cooldown gate.
func (s *Store) IsMarketOnCooldown(ctx context.Context, marketID string, minutes float64) (bool, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(minutes * float64(time.Minute)))
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_executions WHERE market_id = ? AND closed_at IS NOT NULL AND closed_at >= ?`,
		marketID, cutoff,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlitestore.IsMarketOnCooldown: %w", err)
	}
	return n > 0, nil
}

// GetOpenCount returns the number of currently open executions.
func (s *Store) GetOpenCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_executions WHERE status = 'open'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.GetOpenCount: %w", err)
	}
	return n, nil
}

// GetTotalOpenExposure sums amount_usd across every open execution.
func (s *Store) GetTotalOpenExposure(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(amount_usd) FROM trade_executions WHERE status = 'open'`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.GetTotalOpenExposure: %w", err)
	}
	return total.Float64, nil
}

// GetOpenExposureByCategory sums amount_usd across open executions grouped
// by category, used by the concentration gate.
func (s *Store) GetOpenExposureByCategory(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(amount_usd) FROM trade_executions
		WHERE status = 'open' GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetOpenExposureByCategory: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var cat string
		var sum float64
		if err := rows.Scan(&cat, &sum); err != nil {
			return nil, fmt.Errorf("sqlitestore.GetOpenExposureByCategory: scan: %w", err)
		}
		out[cat] = sum
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowsAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: execution %d not open or not found", op, id)
	}
	return nil
}
