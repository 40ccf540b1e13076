// Package monitor implements the Settlement Monitor (spec.md §4.9): a single
// periodic loop that rehydrates open executions into the position ledger,
// fetches mark prices, and applies the ordered exit-rule chain.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// ConfigSource is the narrow slice of the Config Store the monitor reads.
type ConfigSource interface {
	Get(key string) (float64, bool)
}

// RiskManager is the narrow slice of riskmgr.Manager the monitor needs.
type RiskManager interface {
	RecordTradeClose(ctx context.Context, category string, amountUSD, pnlUSD float64) error
}

// BotControl is the narrow slice of botcontrol.Controller the monitor needs.
type BotControl interface {
	NotifyOpenCount(ctx context.Context, openCount int) error
}

// ExecutionLog is the narrow slice of execlog.Log the monitor needs.
type ExecutionLog interface {
	GetOpen(ctx context.Context) ([]domain.Execution, error)
	CloseExecution(ctx context.Context, id int64, exitPrice, pnlUSD, pnlPct float64, closeReason string) error
	CancelExecution(ctx context.Context, id int64, reason string) error
}

// AuditLog is the narrow slice of auditlog.Log the monitor needs.
type AuditLog interface {
	LogEvent(ctx context.Context, eventType string, executionID *int64, detail map[string]any, dryRun bool)
}

// Ledger is the narrow slice of lifecycle.Manager the monitor needs.
type Ledger interface {
	Register(p *domain.Position)
	Get(positionID string) *domain.Position
	All() []*domain.Position
	Acknowledge(positionID string) bool
	Count() int
	SweepExpiredPending(now time.Time) []*domain.Position
}

// Options configures a Monitor.
type Options struct {
	Interval time.Duration // default 60s
	Live     bool
}

// Monitor is the Settlement Monitor.
type Monitor struct {
	execLog ExecutionLog
	ledger  Ledger
	clob    ports.ClobClient
	risk    RiskManager
	bot     BotControl
	audit   AuditLog
	cfg     ConfigSource
	clock   ports.Clock
	opts    Options

	running             atomic.Bool
	stop                context.CancelFunc
	mu                  sync.Mutex
	consecutiveFailures int
}

// New creates a Monitor.
func New(execLog ExecutionLog, ledger Ledger, clob ports.ClobClient, risk RiskManager, bot BotControl, audit AuditLog, cfg ConfigSource, clock ports.Clock, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	return &Monitor{execLog: execLog, ledger: ledger, clob: clob, risk: risk, bot: bot, audit: audit, cfg: cfg, clock: clock, opts: opts}
}

// Start launches the ticker loop in a new goroutine. It is idempotent: a
// second call while already running is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.stop = cancel

	go func() {
		defer m.running.Store(false)
		ticker := time.NewTicker(m.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.Tick(runCtx)
			}
		}
	}()
}

// Stop cancels the running loop. It is idempotent: calling it when not
// running is a no-op.
func (m *Monitor) Stop() {
	if m.stop != nil {
		m.stop()
	}
}

// Tick rehydrates any open execution missing from the ledger, then
// evaluates every tracked position's exit rules once.
func (m *Monitor) Tick(ctx context.Context) {
	execs, err := m.execLog.GetOpen(ctx)
	if err != nil {
		slog.Warn("monitor: get open executions failed", "error", err)
		return
	}
	byID := make(map[int64]domain.Execution, len(execs))
	for _, e := range execs {
		byID[e.ID] = e
		m.rehydrate(e)
	}

	now := m.clock.Now()

	m.sweepExpiredPending(ctx, now)

	anyFetch, anyFetchOK := false, false

	for _, p := range m.ledger.All() {
		e, ok := byID[p.ExecutionID]
		if !ok || domain.IsTerminal(p.State) {
			continue
		}
		anyFetch = true

		price, err := m.clob.GetPrice(ctx, p.TokenID)
		if err != nil {
			slog.Warn("monitor: get price failed", "token_id", p.TokenID, "error", err)
			continue
		}
		anyFetchOK = true

		m.evaluate(ctx, p, e, price.Price, now)
	}

	m.trackFetchHealth(ctx, anyFetch, anyFetchOK)
}

func (m *Monitor) rehydrate(e domain.Execution) {
	positionID := fmt.Sprintf("pos-%d", e.ID)
	if m.ledger.Get(positionID) != nil {
		return
	}
	p := domain.NewPosition(positionID, e.ID, e.MarketID, e.TokenID, e.Side, e.OpenedAt)
	p.Transition(domain.StateEntered, "rehydrated", e.OpenedAt)
	entry := e.EntryPrice
	if e.FillPrice != nil && *e.FillPrice > 0 {
		entry = *e.FillPrice
	}
	if entry > 0 {
		p.AvgPrice = entry
		p.InitialShares = e.AmountUSD / entry
		p.CurrentShares = p.InitialShares
	}
	p.UpdatePeak(entry)
	m.ledger.Register(p)
}

// sweepExpiredPending auto-cancels every PENDING position that has outlived
// domain.PendingTimeout (spec.md §4.7) along with its backing execution.
func (m *Monitor) sweepExpiredPending(ctx context.Context, now time.Time) {
	for _, p := range m.ledger.SweepExpiredPending(now) {
		if err := m.execLog.CancelExecution(ctx, p.ExecutionID, "pending_timeout"); err != nil {
			slog.Warn("monitor: cancel expired pending execution failed", "execution_id", p.ExecutionID, "error", err)
		}
		id := p.ExecutionID
		m.audit.LogEvent(ctx, domain.EventPendingTimeout, &id, map[string]any{
			"market_id": p.MarketID, "position_id": p.PositionID,
		}, false)
	}
}

func (m *Monitor) trackFetchHealth(ctx context.Context, anyFetch, anyFetchOK bool) {
	if !anyFetch {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if anyFetchOK {
		m.consecutiveFailures = 0
		return
	}
	m.consecutiveFailures++
	if m.consecutiveFailures == 3 {
		m.audit.LogEvent(ctx, domain.EventClobUnreachable, nil, map[string]any{"consecutive_failures": m.consecutiveFailures}, false)
	}
}
