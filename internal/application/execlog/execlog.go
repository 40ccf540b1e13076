// Package execlog implements the Execution Log (spec.md §4.4): the
// append-on-open/update-on-close record of every intended trade, live or
// simulated.
package execlog

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// Log wraps ports.ExecutionStore with the operation names spec.md §4.4
// names, keeping the repository itself free of domain-level validation.
type Log struct {
	store ports.ExecutionStore
}

// New creates an Execution Log backed by store.
func New(store ports.ExecutionStore) *Log {
	return &Log{store: store}
}

// LogExecution appends a new open trade_executions row.
func (l *Log) LogExecution(ctx context.Context, e domain.Execution) (int64, error) {
	id, err := l.store.LogExecution(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("execlog.LogExecution: %w", err)
	}
	return id, nil
}

// CloseExecution marks an open execution closed with realized P&L.
func (l *Log) CloseExecution(ctx context.Context, id int64, exitPrice, pnlUSD, pnlPct float64, closeReason string) error {
	if err := l.store.CloseExecution(ctx, id, exitPrice, pnlUSD, pnlPct, closeReason); err != nil {
		return fmt.Errorf("execlog.CloseExecution: %w", err)
	}
	return nil
}

// FailExecution marks an execution failed, e.g. on order rejection.
func (l *Log) FailExecution(ctx context.Context, id int64, errMsg string) error {
	if err := l.store.FailExecution(ctx, id, errMsg); err != nil {
		return fmt.Errorf("execlog.FailExecution: %w", err)
	}
	return nil
}

// CancelExecution is the admin kill-switch for a single open execution.
func (l *Log) CancelExecution(ctx context.Context, id int64, reason string) error {
	if err := l.store.CancelExecution(ctx, id, reason); err != nil {
		return fmt.Errorf("execlog.CancelExecution: %w", err)
	}
	return nil
}

// CancelAllOpen is the admin kill-switch for every open execution.
func (l *Log) CancelAllOpen(ctx context.Context, reason string) (int, error) {
	n, err := l.store.CancelAllOpen(ctx, reason)
	if err != nil {
		return 0, fmt.Errorf("execlog.CancelAllOpen: %w", err)
	}
	return n, nil
}

// GetOpen returns every execution still in the open state.
func (l *Log) GetOpen(ctx context.Context) ([]domain.Execution, error) {
	out, err := l.store.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("execlog.GetOpen: %w", err)
	}
	return out, nil
}

// GetBySignal returns every execution created from a given signal id.
func (l *Log) GetBySignal(ctx context.Context, signalID string) ([]domain.Execution, error) {
	out, err := l.store.GetBySignal(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("execlog.GetBySignal: %w", err)
	}
	return out, nil
}

// HasOpenPositionOnMarket backs the Bridge's dedup gate.
func (l *Log) HasOpenPositionOnMarket(ctx context.Context, marketID string) (bool, error) {
	ok, err := l.store.HasOpenPositionOnMarket(ctx, marketID)
	if err != nil {
		return false, fmt.Errorf("execlog.HasOpenPositionOnMarket: %w", err)
	}
	return ok, nil
}

// IsMarketOnCooldown backs the Bridge's cooldown gate.
func (l *Log) IsMarketOnCooldown(ctx context.Context, marketID string, minutes float64) (bool, error) {
	ok, err := l.store.IsMarketOnCooldown(ctx, marketID, minutes)
	if err != nil {
		return false, fmt.Errorf("execlog.IsMarketOnCooldown: %w", err)
	}
	return ok, nil
}

// GetOpenCount returns the number of currently open executions.
func (l *Log) GetOpenCount(ctx context.Context) (int, error) {
	n, err := l.store.GetOpenCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("execlog.GetOpenCount: %w", err)
	}
	return n, nil
}
