// Package bridge implements the Scanner-Trader Bridge (spec.md §4.8): the
// ordered, short-circuiting gate chain that turns an admitted upstream
// signal into a dry-run record or a live CLOB order, with every outcome
// recorded by the Decision Tracker.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polysignal/internal/application/riskmgr"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// ConfigSource is the narrow slice of the Config Store the Bridge reads.
type ConfigSource interface {
	Get(key string) (float64, bool)
}

// RiskManager is the narrow slice of riskmgr.Manager the Bridge depends on.
type RiskManager interface {
	CanTrade(category string) riskmgr.TradeDecision
	GetBetSize(edge float64) float64
	RecordTradeOpen(category string, amountUSD float64)
}

// BotControl is the narrow slice of botcontrol.Controller the Bridge needs.
type BotControl interface {
	AllowsNewTrades() bool
	NotifyOpenCount(ctx context.Context, openCount int) error
}

// ExecutionLog is the narrow slice of execlog.Log the Bridge needs.
type ExecutionLog interface {
	LogExecution(ctx context.Context, e domain.Execution) (int64, error)
	FailExecution(ctx context.Context, id int64, errMsg string) error
	HasOpenPositionOnMarket(ctx context.Context, marketID string) (bool, error)
	IsMarketOnCooldown(ctx context.Context, marketID string, minutes float64) (bool, error)
	GetOpenCount(ctx context.Context) (int, error)
}

// DecisionTracker is the narrow slice of decisions.Tracker the Bridge needs.
type DecisionTracker interface {
	RecordOutcome(ctx context.Context, signal domain.Signal, outcome domain.DecisionOutcome, scores map[string]float64, trace []domain.GateResult) (int64, error)
}

// AuditLog is the narrow slice of auditlog.Log the Bridge needs.
type AuditLog interface {
	LogEvent(ctx context.Context, eventType string, executionID *int64, detail map[string]any, dryRun bool)
}

// Ledger is the narrow slice of lifecycle.Manager the Bridge needs.
type Ledger interface {
	Register(p *domain.Position)
	Get(positionID string) *domain.Position
}

// Options configures a Bridge.
type Options struct {
	// EnableTrading and DryRun together gate the live path, per spec.md §6:
	// "Live trading requires both flags flipped and CLOB credentials
	// present." The Bridge itself only consults the resolved boolean its
	// wiring computed; the env/credential check happens at startup.
	Live bool

	CooldownMinutes float64
	MaxPollWindow   time.Duration
	PollInterval    time.Duration

	CSVSink *CSVSink // nil disables the dry-run CSV sink
}

// Bridge is the Scanner-Trader Bridge.
type Bridge struct {
	signals   ports.SignalSource
	clob      ports.ClobClient
	risk      RiskManager
	bot       BotControl
	execLog   ExecutionLog
	decisions DecisionTracker
	audit     AuditLog
	ledger    Ledger
	cfg       ConfigSource
	clock     ports.Clock
	opts      Options

	balanceMu    sync.Mutex
	balanceCache *float64
}

// New creates a Bridge.
func New(
	signals ports.SignalSource,
	clob ports.ClobClient,
	risk RiskManager,
	bot BotControl,
	execLog ExecutionLog,
	decisions DecisionTracker,
	audit AuditLog,
	ledger Ledger,
	cfg ConfigSource,
	clock ports.Clock,
	opts Options,
) *Bridge {
	if opts.CooldownMinutes <= 0 {
		opts.CooldownMinutes = 5
	}
	if opts.MaxPollWindow <= 0 {
		opts.MaxPollWindow = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Bridge{
		signals: signals, clob: clob, risk: risk, bot: bot, execLog: execLog,
		decisions: decisions, audit: audit, ledger: ledger, cfg: cfg, clock: clock, opts: opts,
	}
}

// Run subscribes to the upstream signal source and evaluates every signal
// until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		signal, err := b.signals.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("bridge: signal source error", "error", err)
			continue
		}
		b.Evaluate(ctx, signal)
	}
}

// gateTrace accumulates the ordered, short-circuiting gate results for one
// signal evaluation.
type gateTrace struct {
	entries []domain.GateResult
}

func (t *gateTrace) check(name string, ok bool, detail string) bool {
	t.entries = append(t.entries, domain.GateResult{Name: name, Passed: ok, Detail: detail})
	return ok
}

// Evaluate runs the ordered gate chain from spec.md §4.8 against one signal,
// admitting it to the dry-run or live path on success and recording the
// outcome with the Decision Tracker regardless.
func (b *Bridge) Evaluate(ctx context.Context, signal domain.Signal) {
	trace := &gateTrace{}

	if !trace.check("admission", signal.Qualifies(), fmt.Sprintf("action=%s strength=%s", signal.Action, signal.Strength)) {
		b.block(ctx, signal, trace.entries)
		return
	}
	if !trace.check("control", b.bot.AllowsNewTrades(), "") {
		b.block(ctx, signal, trace.entries)
		return
	}

	hasOpen, err := b.execLog.HasOpenPositionOnMarket(ctx, signal.MarketID)
	if err != nil {
		slog.Warn("bridge: dedup check failed", "market_id", signal.MarketID, "error", err)
		hasOpen = true // fail closed
	}
	if !trace.check("dedup", !hasOpen, "") {
		b.block(ctx, signal, trace.entries)
		return
	}

	onCooldown, err := b.execLog.IsMarketOnCooldown(ctx, signal.MarketID, b.opts.CooldownMinutes)
	if err != nil {
		slog.Warn("bridge: cooldown check failed", "market_id", signal.MarketID, "error", err)
		onCooldown = true
	}
	if !trace.check("cooldown", !onCooldown, "") {
		b.block(ctx, signal, trace.entries)
		return
	}

	minSettlement, _ := b.cfg.Get(domain.KeyMinSettlementMinutes)
	if !trace.check("settlement_time", signal.SettlementLeftMin >= minSettlement, fmt.Sprintf("%.1f < %.1f", signal.SettlementLeftMin, minSettlement)) {
		b.block(ctx, signal, trace.entries)
		return
	}

	maxSpread, _ := b.cfg.Get(domain.KeyMaxSpread)
	if !trace.check("spread", signal.Spread() <= maxSpread, fmt.Sprintf("%.4f > %.4f", signal.Spread(), maxSpread)) {
		b.block(ctx, signal, trace.entries)
		return
	}

	riskDec := b.risk.CanTrade(signal.Category)
	if !trace.check("risk", riskDec.Allowed, riskDec.Reason) {
		b.block(ctx, signal, trace.entries)
		return
	}

	betSize := b.risk.GetBetSize(signal.Edge())
	tokenID := signal.TokenID()

	var ladder domain.OrderBookLadder
	if b.opts.Live {
		minBalance, _ := b.cfg.Get(domain.KeyMinBalanceUSD)
		required := minBalance
		if betSize > required {
			required = betSize
		}
		balance, err := b.cachedBalance(ctx)
		if err != nil {
			slog.Warn("bridge: balance check failed", "error", err)
			balance = 0
		}
		if !trace.check("balance", balance >= required, fmt.Sprintf("%.2f < %.2f", balance, required)) {
			b.block(ctx, signal, trace.entries)
			return
		}

		if tokenID != "" {
			ladder, err = b.clob.GetOrderBook(ctx, tokenID)
			if err != nil {
				slog.Warn("bridge: orderbook fetch failed", "token_id", tokenID, "error", err)
			}
		}
		maxSlippage, _ := b.cfg.Get(domain.KeyMaxSlippagePct)
		slippage := estimateSlippagePct(ladder, signal.Price())
		depthOK := ladder.AskLiquidity*ladder.BestAsk >= betSize
		if !trace.check("liquidity", depthOK && slippage <= maxSlippage, fmt.Sprintf("slippage=%.2f depth=%.2f", slippage, ladder.AskLiquidity)) {
			b.block(ctx, signal, trace.entries)
			return
		}
	}

	if tokenID == "" {
		trace.check("token_id", false, "no_token_id")
		b.block(ctx, signal, trace.entries)
		return
	}

	if !b.opts.Live {
		b.executeDryRun(ctx, signal, trace.entries, betSize, tokenID)
		return
	}
	b.executeLive(ctx, signal, trace.entries, betSize, tokenID)
}

func (b *Bridge) block(ctx context.Context, signal domain.Signal, trace []domain.GateResult) {
	// Gates after the blocking one are recorded as not evaluated, so
	// gates_total always counts the whole chain of the active path.
	names := []string{"admission", "control", "dedup", "cooldown", "settlement_time", "spread", "risk", "token_id"}
	if b.opts.Live {
		names = []string{"admission", "control", "dedup", "cooldown", "settlement_time", "spread", "risk", "balance", "liquidity", "token_id"}
	}
	if len(trace) < len(names) {
		for _, name := range names[len(trace):] {
			trace = append(trace, domain.GateResult{Name: name, Passed: false, Detail: "not_evaluated"})
		}
	}
	_, err := b.decisions.RecordOutcome(ctx, signal, domain.OutcomeBlocked, signalScores(signal), trace)
	if err != nil {
		slog.Warn("bridge: record blocked decision failed", "signal_id", signal.SignalID, "error", err)
	}
}

func signalScores(signal domain.Signal) map[string]float64 {
	return map[string]float64{
		"edge":       signal.Edge(),
		"confidence": signal.Confidence,
		"kelly":      signal.Kelly,
	}
}

func (b *Bridge) cachedBalance(ctx context.Context) (float64, error) {
	b.balanceMu.Lock()
	defer b.balanceMu.Unlock()
	if b.balanceCache != nil {
		return *b.balanceCache, nil
	}
	bal, err := b.clob.GetBalance(ctx)
	if err != nil {
		return 0, err
	}
	b.balanceCache = &bal
	return bal, nil
}

// invalidateBalance is called after a successful order placement (spec.md
// §4.8: "Balance cache is invalidated after successful placement").
func (b *Bridge) invalidateBalance() {
	b.balanceMu.Lock()
	defer b.balanceMu.Unlock()
	b.balanceCache = nil
}

// estimateSlippagePct approximates the slippage a market buy at entryPrice
// would incur against the current ask, used by the pre-trade liquidity gate.
func estimateSlippagePct(ladder domain.OrderBookLadder, entryPrice float64) float64 {
	if entryPrice <= 0 || ladder.BestAsk <= 0 {
		return 100
	}
	return ((ladder.BestAsk - entryPrice) / entryPrice) * 100
}
