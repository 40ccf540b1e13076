// Package decisions implements the Decision Tracker (spec.md §4.6): the
// full gate-tree record for every signal the Bridge evaluates, admitted,
// blocked, or near-miss.
package decisions

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// Tracker wraps ports.DecisionStore with the gate-trace bookkeeping the
// Bridge needs on every signal it evaluates.
type Tracker struct {
	store ports.DecisionStore
	clock ports.Clock
}

// New creates a Decision Tracker backed by store.
func New(store ports.DecisionStore, clock ports.Clock) *Tracker {
	return &Tracker{store: store, clock: clock}
}

// RecordOutcome builds and persists a DecisionRecord from an ordered gate
// trace (spec.md §4.6/§4.8), deriving gates_passed/gates_total/blocking_gate
// from the trace itself.
func (t *Tracker) RecordOutcome(ctx context.Context, signal domain.Signal, outcome domain.DecisionOutcome, scores map[string]float64, trace []domain.GateResult) (int64, error) {
	passed, total, blocking := domain.BuildGateDetails(trace)
	rec := domain.DecisionRecord{
		SignalID:       signal.SignalID,
		MarketID:       signal.MarketID,
		Outcome:        outcome,
		BlockingGate:   blocking,
		GatesPassed:    passed,
		GatesTotal:     total,
		Scores:         scores,
		GateDetails:    trace,
		SignalSnapshot: signal,
		At:             t.clock.Now(),
	}
	id, err := t.store.Record(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("decisions.RecordOutcome: %w", err)
	}
	return id, nil
}

// Recent returns the most recent decisions, regardless of outcome.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	out, err := t.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("decisions.Recent: %w", err)
	}
	return out, nil
}

// NearMisses returns blocked decisions that passed all but (at most) one
// gate over the trailing window.
func (t *Tracker) NearMisses(ctx context.Context, days, limit int) ([]domain.DecisionRecord, error) {
	out, err := t.store.NearMisses(ctx, days, limit)
	if err != nil {
		return nil, fmt.Errorf("decisions.NearMisses: %w", err)
	}
	return out, nil
}

// FilterCost returns, per blocking gate, how many signals it blocked over
// the trailing window.
func (t *Tracker) FilterCost(ctx context.Context, days int) (map[string]int, error) {
	out, err := t.store.FilterCost(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("decisions.FilterCost: %w", err)
	}
	return out, nil
}
