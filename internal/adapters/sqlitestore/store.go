package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/polysignal/internal/domain"
	_ "modernc.org/sqlite"
)

// Store implements ports.Store on a single-writer SQLite connection,
// following the teacher's NewSQLiteStorage pattern (internal/adapters/storage/sqlite.go):
// one open connection, schema applied eagerly, everything else done through
// prepared statements and single transactions.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.New: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the schema and seeds the bot_control singleton and
// trading_config defaults if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlitestore.Migrate: apply schema: %w", err)
	}
	if err := s.seedBotControl(ctx); err != nil {
		return err
	}
	if err := s.seedConfig(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) seedBotControl(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_control (id, state, changed_at, reason)
		VALUES (1, ?, CURRENT_TIMESTAMP, 'initial boot')
		ON CONFLICT(id) DO NOTHING
	`, string(domain.BotStopped))
	if err != nil {
		return fmt.Errorf("sqlitestore.seedBotControl: %w", err)
	}
	return nil
}

func (s *Store) seedConfig(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore.seedConfig: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trading_config (key, value, updated_at, updated_by)
		VALUES (?, ?, CURRENT_TIMESTAMP, 'system')
		ON CONFLICT(key) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("sqlitestore.seedConfig: prepare: %w", err)
	}
	defer stmt.Close()

	for key, value := range domain.DefaultValues() {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return fmt.Errorf("sqlitestore.seedConfig: insert %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
