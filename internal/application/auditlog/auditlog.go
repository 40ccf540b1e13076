// Package auditlog implements the Audit Log (spec.md §4.5): an append-only
// structured event stream that fans out to the Notification Dispatcher,
// plus the reconciliation and auto-repair sweeps over stale open
// executions.
package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// Dispatcher is the narrow hook the Audit Log invokes synchronously after
// every successful append (spec.md §4.5). It is expected to map internal
// event types to outbound webhook event names and never to block on
// delivery itself.
type Dispatcher interface {
	NotifyEvent(ctx context.Context, eventType string, executionID *int64, detail map[string]any)
}

// Log is the Audit Log.
type Log struct {
	store     ports.AuditStore
	execStore ports.ExecutionStore
	dispatch  Dispatcher
	clock     ports.Clock
}

// New creates an Audit Log. dispatch may be nil when the Notification
// Dispatcher is not wired (e.g. in tests).
func New(store ports.AuditStore, execStore ports.ExecutionStore, dispatch Dispatcher, clock ports.Clock) *Log {
	return &Log{store: store, execStore: execStore, dispatch: dispatch, clock: clock}
}

// LogEvent appends an event and fans it out to the dispatcher. Auditing must
// never break the trading pipeline (spec.md §7): append failures and panics
// alike are logged and swallowed instead of propagating to the caller.
func (l *Log) LogEvent(ctx context.Context, eventType string, executionID *int64, detail map[string]any, dryRun bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audit log panic recovered", "event_type", eventType, "panic", r)
		}
	}()

	_, err := l.store.Append(ctx, domain.AuditEvent{
		EventType:   eventType,
		ExecutionID: executionID,
		Detail:      detail,
		DryRun:      dryRun,
		At:          l.clock.Now(),
	})
	if err != nil {
		slog.Error("audit log append failed", "event_type", eventType, "error", err)
		return
	}
	if l.dispatch != nil {
		l.dispatch.NotifyEvent(ctx, eventType, executionID, detail)
	}
}

// Query returns the most recent audit rows, optionally filtered by type.
func (l *Log) Query(ctx context.Context, eventType string, limit int) ([]domain.AuditEvent, error) {
	return l.store.Query(ctx, eventType, limit)
}

// Summary returns a count per event type over the trailing window.
func (l *Log) Summary(ctx context.Context, days int) (map[string]int, error) {
	return l.store.Summary(ctx, days)
}

// ExecutionTrail returns every audit row tied to one execution, in order.
func (l *Log) ExecutionTrail(ctx context.Context, executionID int64) ([]domain.AuditEvent, error) {
	return l.store.ExecutionTrail(ctx, executionID)
}

// StalePosition is one open execution whose last audit event is more than
// 24h old (spec.md §4.5 reconciliation).
type StalePosition struct {
	Execution   domain.Execution
	LastEventAt time.Time
}

// staleAfter is the reconciliation threshold from spec.md §4.5.
const staleAfter = 24 * time.Hour

// Reconcile flags open executions whose last audit event predates the
// staleness window. It performs no mutation; AutoRepair is the remediation
// step.
func (l *Log) Reconcile(ctx context.Context) ([]StalePosition, error) {
	opens, err := l.execStore.GetOpen(ctx)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	var stale []StalePosition
	for _, e := range opens {
		last := e.OpenedAt
		trail, err := l.store.ExecutionTrail(ctx, e.ID)
		if err == nil && len(trail) > 0 {
			last = trail[len(trail)-1].At
		}
		if now.Sub(last) > staleAfter {
			stale = append(stale, StalePosition{Execution: e, LastEventAt: last})
		}
	}
	return stale, nil
}

// AutoRepair cancels every open execution older than maxAgeHours, emitting
// POSITION_AUTO_REPAIRED for each (spec.md §4.5, default maxAgeHours=72).
func (l *Log) AutoRepair(ctx context.Context, maxAgeHours float64) (int, error) {
	opens, err := l.execStore.GetOpen(ctx)
	if err != nil {
		return 0, err
	}

	now := l.clock.Now()
	maxAge := time.Duration(maxAgeHours * float64(time.Hour))
	repaired := 0
	for _, e := range opens {
		if now.Sub(e.OpenedAt) < maxAge {
			continue
		}
		if err := l.execStore.CancelExecution(ctx, e.ID, "auto_repair_stale"); err != nil {
			slog.Warn("auto repair cancel failed", "execution_id", e.ID, "error", err)
			continue
		}
		id := e.ID
		l.LogEvent(ctx, domain.EventPositionAutoRepaired, &id, map[string]any{
			"market_id":  e.MarketID,
			"age_hours":  now.Sub(e.OpenedAt).Hours(),
		}, e.DryRun)
		repaired++
	}
	return repaired, nil
}
