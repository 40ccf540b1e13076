package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Append inserts one trade_audit_log row. Rows are append-only: the table
// is never updated or deleted from (spec.md §3/§4.5).
func (s *Store) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Append: marshal detail: %w", err)
	}

	var execID sql.NullInt64
	if event.ExecutionID != nil {
		execID = sql.NullInt64{Int64: *event.ExecutionID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_audit_log (execution_id, event_type, detail_json, dry_run, at)
		VALUES (?, ?, ?, ?, ?)
	`, execID, event.EventType, string(detail), boolToInt(event.DryRun), event.At.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Append: %w", err)
	}
	return res.LastInsertId()
}

func scanAuditEvent(row interface{ Scan(...any) error }) (domain.AuditEvent, error) {
	var ev domain.AuditEvent
	var execID sql.NullInt64
	var detail string
	var dryRun int
	var at time.Time
	if err := row.Scan(&ev.ID, &execID, &ev.EventType, &detail, &dryRun, &at); err != nil {
		return domain.AuditEvent{}, err
	}
	if execID.Valid {
		id := execID.Int64
		ev.ExecutionID = &id
	}
	ev.DryRun = dryRun == 1
	ev.At = at
	if detail != "" {
		_ = json.Unmarshal([]byte(detail), &ev.Detail)
	}
	return ev, nil
}

const auditCols = `id, execution_id, event_type, detail_json, dry_run, at`

// Query returns the most recent audit rows, optionally filtered by type.
func (s *Store) Query(ctx context.Context, eventType string, limit int) ([]domain.AuditEvent, error) {
	var rows *sql.Rows
	var err error
	if eventType == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+auditCols+` FROM trade_audit_log ORDER BY at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+auditCols+` FROM trade_audit_log WHERE event_type = ? ORDER BY at DESC LIMIT ?`, eventType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.Query: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore.Query: scan: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Summary returns a count per event type over the trailing window.
func (s *Store) Summary(ctx context.Context, days int) (map[string]int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM trade_audit_log
		WHERE at >= ? GROUP BY event_type
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.Summary: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("sqlitestore.Summary: scan: %w", err)
		}
		out[eventType] = n
	}
	return out, rows.Err()
}

// ExecutionTrail returns every audit row tied to one execution, in order.
func (s *Store) ExecutionTrail(ctx context.Context, executionID int64) ([]domain.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditCols+` FROM trade_audit_log WHERE execution_id = ? ORDER BY at
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ExecutionTrail: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore.ExecutionTrail: scan: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
