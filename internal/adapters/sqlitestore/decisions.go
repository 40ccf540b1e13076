package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Record inserts one decision_log row capturing the full gate trace for a
// signal, regardless of outcome (spec.md §4.6).
func (s *Store) Record(ctx context.Context, rec domain.DecisionRecord) (int64, error) {
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Record: marshal scores: %w", err)
	}
	trace, err := json.Marshal(rec.GateDetails)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Record: marshal gate trace: %w", err)
	}
	signal, err := json.Marshal(rec.SignalSnapshot)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Record: marshal signal: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_log
			(signal_id, market_id, outcome, blocking_gate, gates_passed, gates_total,
			 scores_json, gate_trace_json, signal_json, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.SignalID, rec.MarketID, string(rec.Outcome), rec.BlockingGate,
		rec.GatesPassed, rec.GatesTotal, string(scores), string(trace), string(signal),
		rec.At.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Record: %w", err)
	}
	return res.LastInsertId()
}

func scanDecision(row interface{ Scan(...any) error }) (domain.DecisionRecord, error) {
	var d domain.DecisionRecord
	var outcome, scores, trace, signal string
	var at time.Time
	if err := row.Scan(
		&d.ID, &d.SignalID, &d.MarketID, &outcome, &d.BlockingGate,
		&d.GatesPassed, &d.GatesTotal, &scores, &trace, &signal, &at,
	); err != nil {
		return domain.DecisionRecord{}, err
	}
	d.Outcome = domain.DecisionOutcome(outcome)
	d.At = at
	_ = json.Unmarshal([]byte(scores), &d.Scores)
	_ = json.Unmarshal([]byte(trace), &d.GateDetails)
	_ = json.Unmarshal([]byte(signal), &d.SignalSnapshot)
	return d, nil
}

const decisionCols = `
	id, signal_id, market_id, outcome, blocking_gate, gates_passed, gates_total,
	scores_json, gate_trace_json, signal_json, at
`

// Recent returns the most recent decisions, regardless of outcome.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+decisionCols+` FROM decision_log ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.Recent: %w", err)
	}
	defer rows.Close()
	return collectDecisions(rows)
}

// NearMisses returns blocked decisions that passed all but (at most) one
// gate over the trailing window.
func (s *Store) NearMisses(ctx context.Context, days int, limit int) ([]domain.DecisionRecord, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+decisionCols+` FROM decision_log
		WHERE outcome = 'blocked' AND gates_passed >= gates_total - 1 AND at >= ?
		ORDER BY at DESC LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.NearMisses: %w", err)
	}
	defer rows.Close()
	return collectDecisions(rows)
}

func collectDecisions(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.DecisionRecord, error) {
	var out []domain.DecisionRecord
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FilterCost returns, per blocking gate, how many signals it blocked over
// the trailing window — the Decision Tracker's filter-cost report.
func (s *Store) FilterCost(ctx context.Context, days int) (map[string]int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT blocking_gate, COUNT(*) FROM decision_log
		WHERE outcome = 'blocked' AND at >= ? GROUP BY blocking_gate
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.FilterCost: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var gate string
		var n int
		if err := rows.Scan(&gate, &n); err != nil {
			return nil, fmt.Errorf("sqlitestore.FilterCost: scan: %w", err)
		}
		out[gate] = n
	}
	return out, rows.Err()
}
