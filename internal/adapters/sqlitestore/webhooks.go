package sqlitestore

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Create inserts a new active webhook subscription.
func (s *Store) Create(ctx context.Context, w domain.Webhook) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (owner_email, url, name, active, success_count, fail_count, last_error)
		VALUES (?, ?, ?, 1, 0, 0, '')
	`, w.OwnerEmail, w.URL, w.Name)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.Create: %w", err)
	}
	return res.LastInsertId()
}

func scanWebhook(row interface{ Scan(...any) error }) (domain.Webhook, error) {
	var w domain.Webhook
	var active int
	if err := row.Scan(&w.ID, &w.OwnerEmail, &w.URL, &w.Name, &active, &w.SuccessCount, &w.FailCount, &w.LastError); err != nil {
		return domain.Webhook{}, err
	}
	w.Active = active == 1
	return w, nil
}

const webhookCols = `id, owner_email, url, name, active, success_count, fail_count, last_error`

// ListActiveByOwner returns the active webhooks registered to one owner.
func (s *Store) ListActiveByOwner(ctx context.Context, owner string) ([]domain.Webhook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+webhookCols+` FROM webhooks WHERE owner_email = ? AND active = 1`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ListActiveByOwner: %w", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore.ListActiveByOwner: scan: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListAllActive returns every active webhook across all owners, used by the
// dispatcher to fan an event out to every subscriber.
func (s *Store) ListAllActive(ctx context.Context) ([]domain.Webhook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+webhookCols+` FROM webhooks WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ListAllActive: %w", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore.ListAllActive: scan: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetByID returns a single webhook, used by the dispatcher worker pool to
// resolve the delivery URL for a queued webhook_queue row.
func (s *Store) GetByID(ctx context.Context, id int64) (domain.Webhook, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+webhookCols+` FROM webhooks WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if err != nil {
		return domain.Webhook{}, fmt.Errorf("sqlitestore.GetByID: %w", err)
	}
	return w, nil
}

// CountByOwner reports how many webhooks (active or not) an owner has
// registered, enforcing the MaxWebhooksPerOwner cap at registration time.
func (s *Store) CountByOwner(ctx context.Context, owner string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhooks WHERE owner_email = ?`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore.CountByOwner: %w", err)
	}
	return n, nil
}

// RecordSuccess increments success_count and resets fail streak bookkeeping.
func (s *Store) RecordSuccess(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhooks SET success_count = success_count + 1, fail_count = 0, last_error = '' WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore.RecordSuccess: %w", err)
	}
	return nil
}

// RecordFailure increments the consecutive failure count and deactivates
// the webhook once it crosses MaxConsecutiveWebhookFailures.
func (s *Store) RecordFailure(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhooks
		SET fail_count = fail_count + 1,
		    last_error = ?,
		    active = CASE WHEN fail_count + 1 >= ? THEN 0 ELSE active END
		WHERE id = ?
	`, errMsg, domain.MaxConsecutiveWebhookFailures, id)
	if err != nil {
		return fmt.Errorf("sqlitestore.RecordFailure: %w", err)
	}
	return nil
}
