package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// ListEnabled returns every owner with alerts_enabled set.
func (s *Store) ListEnabled(ctx context.Context) ([]domain.EmailPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_email, alerts_enabled, min_confidence, categories_json, max_alerts_per_hour
		FROM email_prefs WHERE alerts_enabled = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ListEnabled: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailPreference
	for rows.Next() {
		var p domain.EmailPreference
		var enabled int
		var categories string
		if err := rows.Scan(&p.OwnerEmail, &enabled, &p.MinConfidence, &categories, &p.MaxAlertsPerHour); err != nil {
			return nil, fmt.Errorf("sqlitestore.ListEnabled: scan: %w", err)
		}
		p.AlertsEnabled = enabled == 1
		_ = json.Unmarshal([]byte(categories), &p.Categories)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert creates or replaces one owner's email preference row.
func (s *Store) Upsert(ctx context.Context, p domain.EmailPreference) error {
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("sqlitestore.Upsert: marshal categories: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_prefs (owner_email, alerts_enabled, min_confidence, categories_json, max_alerts_per_hour)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_email) DO UPDATE SET
			alerts_enabled = excluded.alerts_enabled,
			min_confidence = excluded.min_confidence,
			categories_json = excluded.categories_json,
			max_alerts_per_hour = excluded.max_alerts_per_hour
	`, p.OwnerEmail, boolToInt(p.AlertsEnabled), p.MinConfidence, string(categories), p.MaxAlertsPerHour)
	if err != nil {
		return fmt.Errorf("sqlitestore.Upsert: %w", err)
	}
	return nil
}
