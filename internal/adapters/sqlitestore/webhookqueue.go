package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Enqueue inserts a queued webhook_queue row. This table is the durability
// layer for outbound deliveries: a row survives a process restart, unlike
// a WAL file on disk, because it lives in the same transactional store as
// everything else (see the WAL-free durability entry in SPEC_FULL.md's glossary).
func (s *Store) Enqueue(ctx context.Context, d domain.WebhookDelivery) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_queue (webhook_id, event, payload, attempts, status, last_error, enqueued_at)
		VALUES (?, ?, ?, 0, 'queued', '', ?)
	`, d.WebhookID, d.Event, d.Payload, d.EnqueuedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Enqueue: %w", err)
	}
	return res.LastInsertId()
}

// ClaimBatch atomically flips a batch of queued rows to an in-flight marker
// by re-reading them inside the same transaction, avoiding two workers
// delivering the same row.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]domain.WebhookDelivery, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ClaimBatch: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, webhook_id, event, payload, attempts, status, last_error, enqueued_at, delivered_at
		FROM webhook_queue WHERE status = 'queued' ORDER BY enqueued_at LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ClaimBatch: query: %w", err)
	}

	var out []domain.WebhookDelivery
	var ids []int64
	for rows.Next() {
		var d domain.WebhookDelivery
		var status string
		var enqueuedAt time.Time
		var deliveredAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Event, &d.Payload, &d.Attempts, &status, &d.LastError, &enqueuedAt, &deliveredAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlitestore.ClaimBatch: scan: %w", err)
		}
		d.Status = domain.DeliveryStatus(status)
		d.EnqueuedAt = enqueuedAt
		if deliveredAt.Valid {
			d.DeliveredAt = &deliveredAt.Time
		}
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE webhook_queue SET attempts = attempts + 1, status = 'in_flight' WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ClaimBatch: prepare: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return nil, fmt.Errorf("sqlitestore.ClaimBatch: bump attempts %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlitestore.ClaimBatch: commit: %w", err)
	}
	for i := range out {
		out[i].Attempts++
	}
	return out, nil
}

// MarkDelivered marks a row delivered.
func (s *Store) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_queue SET status = 'delivered', delivered_at = ? WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlitestore.MarkDelivered: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure. Unless the caller has decided
// MaxDeliveryAttempts has been exhausted, the row goes back to queued so
// the next ClaimBatch retries it.
func (s *Store) MarkFailed(ctx context.Context, id int64, attempts int, errMsg string, deadLetter bool) error {
	status := string(domain.DeliveryQueued)
	if deadLetter {
		status = string(domain.DeliveryDeadLetter)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_queue SET status = ?, last_error = ? WHERE id = ?
	`, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("sqlitestore.MarkFailed: %w", err)
	}
	return nil
}
