package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// LoadAll returns every trading_config row.
func (s *Store) LoadAll(ctx context.Context) (map[string]domain.ConfigValue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at, updated_by FROM trading_config`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.LoadAll: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.ConfigValue)
	for rows.Next() {
		var v domain.ConfigValue
		var updatedAt time.Time
		if err := rows.Scan(&v.Key, &v.Value, &updatedAt, &v.UpdatedBy); err != nil {
			return nil, fmt.Errorf("sqlitestore.LoadAll: scan: %w", err)
		}
		v.UpdatedAt = updatedAt
		out[v.Key] = v
	}
	return out, rows.Err()
}

// SetMany persists a batch of config updates in a single transaction,
// matching the teacher's transaction-per-batch-write pattern from SaveScan.
func (s *Store) SetMany(ctx context.Context, values map[string]float64, actor string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore.SetMany: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trading_config (key, value, updated_at, updated_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value, updated_at = excluded.updated_at, updated_by = excluded.updated_by
	`)
	if err != nil {
		return fmt.Errorf("sqlitestore.SetMany: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, value, now, actor); err != nil {
			return fmt.Errorf("sqlitestore.SetMany: upsert %s: %w", key, err)
		}
	}
	return tx.Commit()
}
