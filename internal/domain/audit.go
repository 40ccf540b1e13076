package domain

import "time"

// AuditEvent is an immutable row in trade_audit_log (spec.md §3). Rows are
// never updated or deleted.
type AuditEvent struct {
	ID          int64
	EventType   string
	ExecutionID *int64
	Detail      map[string]any
	DryRun      bool
	At          time.Time
}

// Known internal event types referenced across the gate chain, monitor, and
// dispatcher. Kept as constants so callers can't typo an event type that the
// webhook mapping (see dispatch.EventWebhookNames) silently drops.
const (
	EventPositionOpened     = "POSITION_OPENED"
	EventOrderPlaced        = "ORDER_PLACED"
	EventOrderRejected      = "ORDER_REJECTED"
	EventOrderFillError     = "ORDER_FILL_ERROR"
	EventOrderPartialFill   = "ORDER_PARTIAL_FILL"
	EventPartialExit        = "PARTIAL_EXIT"
	EventPositionClosed     = "POSITION_CLOSED"
	EventCircuitBreaker     = "CIRCUIT_BREAKER"
	EventBotStateChange     = "BOT_STATE_CHANGE"
	EventConfigChange       = "CONFIG_CHANGE"
	EventPositionAutoRepaired = "POSITION_AUTO_REPAIRED"
	EventClobUnreachable    = "CLOB_UNREACHABLE"
	EventPendingTimeout     = "PENDING_TIMEOUT"
)
