package domain

import "time"

// ExecutionStatus is the CHECK-constrained status of a trade_executions row.
type ExecutionStatus string

const (
	ExecutionOpen      ExecutionStatus = "open"
	ExecutionClosed    ExecutionStatus = "closed"
	ExecutionCancelled ExecutionStatus = "cancelled"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution is one record per attempted trade (spec.md §3).
type Execution struct {
	ID             int64
	SignalID       string
	MarketID       string
	TokenID        string
	Side           Side
	AmountUSD      float64
	EntryPrice     float64
	FillPrice      *float64
	ExitPrice      *float64
	PnLUSD         *float64
	PnLPct         *float64
	Status         ExecutionStatus
	DryRun         bool
	OrderID        string
	Edge           float64
	Confidence     float64
	QualityScore   float64
	Regime         string
	Category       string
	SizingMethod   string
	SlippageBps    *float64
	CloseReason    string
	OpenedAt       time.Time
	ClosedAt       *time.Time
}

// IsTerminal reports whether this execution has reached a terminal status.
func (e Execution) IsTerminal() bool {
	return e.Status != ExecutionOpen
}

// Age returns how long an execution has been open (or, once closed, its
// total lifetime) as of now.
func (e Execution) Age(now time.Time) time.Duration {
	if e.ClosedAt != nil {
		return e.ClosedAt.Sub(e.OpenedAt)
	}
	return now.Sub(e.OpenedAt)
}
