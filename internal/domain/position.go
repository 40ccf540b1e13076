package domain

import "time"

// PositionState is a Position Lifecycle FSM state (spec.md §4.7).
type PositionState string

const (
	StatePending      PositionState = "PENDING"
	StateEntered      PositionState = "ENTERED"
	StateScaling      PositionState = "SCALING"
	StateHedged       PositionState = "HEDGED"
	StatePartialExit  PositionState = "PARTIAL_EXIT"
	StateClosed       PositionState = "CLOSED"
	StateCancelled    PositionState = "CANCELLED"
)

// PendingTimeout is how long a PENDING position may remain before the owner
// auto-cancels it.
const PendingTimeout = 5 * time.Minute

// maxEventLog bounds the per-position event log (spec.md §3: "bounded event
// log (≤50 entries)").
const maxEventLog = 50

// transitions is the allowed-transition table from spec.md §4.7. A state not
// present as a key, or a destination not present in its set, is forbidden.
var transitions = map[PositionState]map[PositionState]bool{
	StatePending:     {StateEntered: true, StateCancelled: true},
	StateEntered:     {StateScaling: true, StateHedged: true, StatePartialExit: true, StateClosed: true},
	StateScaling:     {StateEntered: true, StateHedged: true, StatePartialExit: true, StateClosed: true},
	StateHedged:      {StateEntered: true, StatePartialExit: true, StateClosed: true},
	StatePartialExit: {StateClosed: true, StateEntered: true},
	StateClosed:      {},
	StateCancelled:   {},
}

// CanTransition reports whether `to` is a legal destination from `from`.
func CanTransition(from, to PositionState) bool {
	dests, ok := transitions[from]
	if !ok {
		return false
	}
	return dests[to]
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s PositionState) bool {
	dests, ok := transitions[s]
	return ok && len(dests) == 0
}

// LifecycleEvent is one bounded, append-only entry in a Position's event log.
type LifecycleEvent struct {
	From   PositionState
	To     PositionState
	Reason string
	At     time.Time
}

// Position is the in-memory lifecycle overlay keyed by PositionID
// (spec.md §3).
type Position struct {
	PositionID     string
	ExecutionID    int64
	MarketID       string
	TokenID        string
	Side           Side
	State          PositionState
	InitialShares  float64
	CurrentShares  float64
	AvgPrice       float64
	RealizedPnL    float64
	HighestPrice   float64
	BreakevenArmed bool
	PartialExitDone bool
	EnteredAt      time.Time
	Events         []LifecycleEvent
}

// NewPosition creates a PENDING position.
func NewPosition(positionID string, execID int64, marketID, tokenID string, side Side, now time.Time) *Position {
	return &Position{
		PositionID:  positionID,
		ExecutionID: execID,
		MarketID:    marketID,
		TokenID:     tokenID,
		Side:        side,
		State:       StatePending,
		EnteredAt:   now,
	}
}

// Transition attempts to move the position to `to`, recording a bounded
// event. Returns false (no-op) if the transition is not allowed — terminal
// states never leave, and invalid edges are rejected rather than silently
// applied.
func (p *Position) Transition(to PositionState, reason string, now time.Time) bool {
	if !CanTransition(p.State, to) {
		return false
	}
	p.appendEvent(p.State, to, reason, now)
	p.State = to
	return true
}

func (p *Position) appendEvent(from, to PositionState, reason string, now time.Time) {
	p.Events = append(p.Events, LifecycleEvent{From: from, To: to, Reason: reason, At: now})
	if len(p.Events) > maxEventLog {
		p.Events = p.Events[len(p.Events)-maxEventLog:]
	}
}

// ScaleIn updates avg_price via size-weighted mean and moves to SCALING.
func (p *Position) ScaleIn(addShares, addPrice float64, now time.Time) bool {
	if !p.Transition(StateScaling, "scale_in", now) {
		return false
	}
	totalShares := p.CurrentShares + addShares
	if totalShares > 0 {
		p.AvgPrice = (p.AvgPrice*p.CurrentShares + addPrice*addShares) / totalShares
	}
	p.CurrentShares = totalShares
	p.InitialShares += addShares
	return true
}

// sideSign returns +1 for YES/UP positions and -1 for NO/DOWN, used in the
// realized P&L formula from spec.md §4.7.
func (p Position) sideSign() float64 {
	if p.Side == SideUp {
		return 1
	}
	return -1
}

// RealizePnL computes realized P&L for exiting `shares` at `exitPrice` and
// accrues it onto RealizedPnL, per spec.md §4.7:
// (exit_price − avg_price) × shares × (+1 if side==YES else −1).
func (p *Position) RealizePnL(exitPrice, shares float64) float64 {
	pnl := (exitPrice - p.AvgPrice) * shares * p.sideSign()
	p.RealizedPnL += pnl
	return pnl
}

// PartialExit reduces current_shares by `shares`, realizes P&L on them, and
// moves to PARTIAL_EXIT. Returns false if the transition is illegal or
// shares exceed current holdings.
func (p *Position) PartialExit(shares, exitPrice float64, now time.Time) (float64, bool) {
	if shares <= 0 || shares > p.CurrentShares {
		return 0, false
	}
	if !p.Transition(StatePartialExit, "partial_exit", now) {
		return 0, false
	}
	pnl := p.RealizePnL(exitPrice, shares)
	p.CurrentShares -= shares
	p.PartialExitDone = true
	return pnl, true
}

// Close fully exits the remaining shares and moves to CLOSED.
func (p *Position) Close(exitPrice float64, reason string, now time.Time) (float64, bool) {
	if !p.Transition(StateClosed, reason, now) {
		return 0, false
	}
	pnl := p.RealizePnL(exitPrice, p.CurrentShares)
	p.CurrentShares = 0
	return pnl, true
}

// Cancel moves a PENDING position to CANCELLED.
func (p *Position) Cancel(reason string, now time.Time) bool {
	return p.Transition(StateCancelled, reason, now)
}

// IsExpiredPending reports whether a PENDING position has outlived
// PendingTimeout and should be auto-cancelled.
func (p Position) IsExpiredPending(now time.Time) bool {
	return p.State == StatePending && now.Sub(p.EnteredAt) >= PendingTimeout
}

// UpdatePeak tracks the highest observed price, used for trailing-stop
// drawdown math.
func (p *Position) UpdatePeak(price float64) {
	if price > p.HighestPrice {
		p.HighestPrice = price
	}
}
