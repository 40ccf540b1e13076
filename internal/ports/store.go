package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// ExecutionStore is the repository for trade_executions (spec.md §4.4).
type ExecutionStore interface {
	LogExecution(ctx context.Context, e domain.Execution) (int64, error)
	CloseExecution(ctx context.Context, id int64, exitPrice, pnlUSD, pnlPct float64, closeReason string) error
	FailExecution(ctx context.Context, id int64, errMsg string) error
	CancelExecution(ctx context.Context, id int64, reason string) error
	CancelAllOpen(ctx context.Context, reason string) (int, error)
	GetOpen(ctx context.Context) ([]domain.Execution, error)
	GetBySignal(ctx context.Context, signalID string) ([]domain.Execution, error)
	HasOpenPositionOnMarket(ctx context.Context, marketID string) (bool, error)
	IsMarketOnCooldown(ctx context.Context, marketID string, minutes float64) (bool, error)
	GetOpenCount(ctx context.Context) (int, error)
	GetTotalOpenExposure(ctx context.Context) (float64, error)
	GetOpenExposureByCategory(ctx context.Context) (map[string]float64, error)
}

// AuditStore is the repository for trade_audit_log (spec.md §4.5).
type AuditStore interface {
	Append(ctx context.Context, event domain.AuditEvent) (int64, error)
	Query(ctx context.Context, eventType string, limit int) ([]domain.AuditEvent, error)
	Summary(ctx context.Context, days int) (map[string]int, error)
	ExecutionTrail(ctx context.Context, executionID int64) ([]domain.AuditEvent, error)
}

// DecisionStore is the repository for decision_log (spec.md §4.6).
type DecisionStore interface {
	Record(ctx context.Context, rec domain.DecisionRecord) (int64, error)
	Recent(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
	NearMisses(ctx context.Context, days int, limit int) ([]domain.DecisionRecord, error)
	FilterCost(ctx context.Context, days int) (map[string]int, error)
}

// ConfigStore is the repository for trading_config (spec.md §4.1).
type ConfigStore interface {
	LoadAll(ctx context.Context) (map[string]domain.ConfigValue, error)
	SetMany(ctx context.Context, values map[string]float64, actor string) error
}

// BotControlStore is the repository for the bot_control singleton row
// (spec.md §4.2).
type BotControlStore interface {
	Load(ctx context.Context) (domain.BotControlRow, error)
	Save(ctx context.Context, row domain.BotControlRow) error
}

// WebhookStore is the repository for webhooks (spec.md §4.10).
type WebhookStore interface {
	Create(ctx context.Context, w domain.Webhook) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.Webhook, error)
	ListActiveByOwner(ctx context.Context, owner string) ([]domain.Webhook, error)
	ListAllActive(ctx context.Context) ([]domain.Webhook, error)
	CountByOwner(ctx context.Context, owner string) (int, error)
	RecordSuccess(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, errMsg string) error
}

// WebhookQueueStore is the repository for webhook_queue (spec.md §2/§4.10).
type WebhookQueueStore interface {
	Enqueue(ctx context.Context, d domain.WebhookDelivery) (int64, error)
	ClaimBatch(ctx context.Context, limit int) ([]domain.WebhookDelivery, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int, errMsg string, deadLetter bool) error
}

// EmailPrefStore is the repository for email_prefs (spec.md §4.10).
type EmailPrefStore interface {
	ListEnabled(ctx context.Context) ([]domain.EmailPreference, error)
	Upsert(ctx context.Context, p domain.EmailPreference) error
}

// Store bundles every repository the application layer needs, matching the
// teacher's pattern of a narrow, purpose-built port per adapter concern
// (internal/ports/*.go) composed at the top for convenience in wiring code.
type Store interface {
	ExecutionStore
	AuditStore
	DecisionStore
	ConfigStore
	BotControlStore
	WebhookStore
	WebhookQueueStore
	EmailPrefStore

	Migrate(ctx context.Context) error
	Close() error
}
