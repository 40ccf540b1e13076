package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Load reads the singleton bot_control row.
func (s *Store) Load(ctx context.Context) (domain.BotControlRow, error) {
	var row domain.BotControlRow
	var state string
	var changedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT state, changed_at, reason FROM bot_control WHERE id = 1`).
		Scan(&state, &changedAt, &row.Reason)
	if err != nil {
		return domain.BotControlRow{}, fmt.Errorf("sqlitestore.Load: %w", err)
	}
	row.State = domain.BotState(state)
	row.ChangedAt = changedAt.UTC().Format(time.RFC3339)
	return row, nil
}

// Save overwrites the singleton bot_control row.
func (s *Store) Save(ctx context.Context, row domain.BotControlRow) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bot_control SET state = ?, changed_at = ?, reason = ? WHERE id = 1
	`, string(row.State), time.Now().UTC(), row.Reason)
	if err != nil {
		return fmt.Errorf("sqlitestore.Save: %w", err)
	}
	return nil
}
