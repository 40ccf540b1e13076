// Package lifecycle owns the in-memory Position Lifecycle FSM overlay
// (spec.md §3/§4.7): positions are created on admission by the Bridge,
// transitioned by the Settlement Monitor, and garbage-collected once
// terminal and acknowledged by their caller.
package lifecycle

import (
	"sync"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Manager is the single writer of the open-position ledger (spec.md §5).
// Every method is safe for concurrent use by the Bridge (admission) and the
// Monitor (exit evaluation), though in practice each owns disjoint keys at
// any moment.
type Manager struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

// New creates an empty ledger. Rehydration is the caller's job: the
// Settlement Monitor reconstructs positions from `trade_executions WHERE
// status = 'open'` on start (spec.md §4.9), since Positions are not
// separately persisted.
func New() *Manager {
	return &Manager{positions: make(map[string]*domain.Position)}
}

// Register adds a new position to the ledger.
func (m *Manager) Register(p *domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.PositionID] = p
}

// Get returns the position for an id, or nil if absent.
func (m *Manager) Get(positionID string) *domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[positionID]
}

// All returns a snapshot slice of every tracked position.
func (m *Manager) All() []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// Count returns the number of tracked positions (open or not yet GC'd).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// Acknowledge removes a terminal position from the ledger. It is a no-op
// for a non-terminal or unknown position id — callers must reach CLOSED or
// CANCELLED first.
func (m *Manager) Acknowledge(positionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[positionID]
	if !ok || !domain.IsTerminal(p.State) {
		return false
	}
	delete(m.positions, positionID)
	return true
}

// SweepExpiredPending cancels every PENDING position that has outlived
// domain.PendingTimeout (spec.md §4.7) and returns the cancelled ones so the
// caller can emit audit events / update counters.
func (m *Manager) SweepExpiredPending(now time.Time) []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*domain.Position
	for _, p := range m.positions {
		if p.IsExpiredPending(now) {
			p.Cancel("pending_timeout", now)
			expired = append(expired, p)
		}
	}
	return expired
}
