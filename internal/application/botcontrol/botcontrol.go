// Package botcontrol implements the Bot Control state machine (spec.md
// §4.2): running/paused/stopped/draining, persisted in the singleton
// bot_control row.
package botcontrol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// Controller owns the bot's run state. State is cached in memory and
// mirrored to the Persistent Store on every transition.
type Controller struct {
	db    ports.BotControlStore
	audit ports.AuditStore
	clock ports.Clock

	mu       sync.RWMutex
	state    domain.BotState
	changed  time.Time
	reason   string
	openPositions int
}

// New loads the persisted bot_control row (seeded to `running` by migration
// if absent) and returns a Controller.
func New(ctx context.Context, db ports.BotControlStore, audit ports.AuditStore, clock ports.Clock) (*Controller, error) {
	row, err := db.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("botcontrol.New: load: %w", err)
	}
	return &Controller{
		db:     db,
		audit:  audit,
		clock:  clock,
		state:  row.State,
		reason: row.Reason,
	}, nil
}

// State returns the current bot state.
func (c *Controller) State() domain.BotState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AllowsNewTrades reports whether the Bridge may admit new trades right now.
func (c *Controller) AllowsNewTrades() bool {
	return c.State().AllowsNewTrades()
}

// MonitorActive reports whether the Settlement Monitor should keep running.
func (c *Controller) MonitorActive() bool {
	return c.State().MonitorActive()
}

// Transition moves the bot to a new state, persists it, and emits a
// BOT_STATE_CHANGE audit event (spec.md §4.2).
func (c *Controller) Transition(ctx context.Context, to domain.BotState, reason string) error {
	c.mu.Lock()
	from := c.state
	now := c.clock.Now()
	c.state = to
	c.changed = now
	c.reason = reason
	c.mu.Unlock()

	if err := c.db.Save(ctx, domain.BotControlRow{State: to, ChangedAt: now.UTC().Format(time.RFC3339), Reason: reason}); err != nil {
		return fmt.Errorf("botcontrol.Transition: save: %w", err)
	}

	if c.audit != nil {
		_, _ = c.audit.Append(ctx, domain.AuditEvent{
			EventType: domain.EventBotStateChange,
			Detail:    map[string]any{"from": string(from), "to": string(to), "reason": reason},
			At:        now,
		})
	}
	return nil
}

// NotifyOpenCount is called by the owner of the open-trade ledger whenever
// the open execution count changes. While draining, reaching zero open
// trades auto-transitions the bot to paused with reason drain_complete
// (spec.md §4.2).
func (c *Controller) NotifyOpenCount(ctx context.Context, openCount int) error {
	c.mu.Lock()
	c.openPositions = openCount
	draining := c.state == domain.BotDraining
	c.mu.Unlock()

	if draining && openCount == 0 {
		return c.Transition(ctx, domain.BotPaused, "drain_complete")
	}
	return nil
}
