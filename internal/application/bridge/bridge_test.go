package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polysignal/internal/application/bridge"
	"github.com/alejandrodnm/polysignal/internal/application/riskmgr"
	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type fakeSignalSource struct {
	signals []domain.Signal
	i       int
}

func (f *fakeSignalSource) Next(ctx context.Context) (domain.Signal, error) {
	if f.i >= len(f.signals) {
		<-ctx.Done()
		return domain.Signal{}, ctx.Err()
	}
	s := f.signals[f.i]
	f.i++
	return s, nil
}

type fakeClob struct {
	placed    domain.PlacedOrder
	placeErr  error
	orderState domain.OrderState
	balance   float64
	ladder    domain.OrderBookLadder
}

func (f *fakeClob) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	return f.placed, f.placeErr
}
func (f *fakeClob) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeClob) GetOrder(ctx context.Context, orderID string) (domain.OrderState, error) {
	return f.orderState, nil
}
func (f *fakeClob) GetPrice(ctx context.Context, tokenID string) (domain.MarkPrice, error) {
	return domain.MarkPrice{}, nil
}
func (f *fakeClob) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookLadder, error) {
	return f.ladder, nil
}
func (f *fakeClob) GetBalance(ctx context.Context) (float64, error) { return f.balance, nil }

type fakeConfig struct{ values map[string]float64 }

func (f *fakeConfig) Get(key string) (float64, bool) {
	v, ok := f.values[key]
	return v, ok
}

func defaultConfig() *fakeConfig {
	vals := make(map[string]float64)
	for k, v := range domain.DefaultValues() {
		vals[k] = v
	}
	return &fakeConfig{values: vals}
}

type fakeRisk struct {
	decision riskmgr.TradeDecision
	betSize  float64
	opens    []string
}

func (f *fakeRisk) CanTrade(category string) riskmgr.TradeDecision { return f.decision }
func (f *fakeRisk) GetBetSize(edge float64) float64                { return f.betSize }
func (f *fakeRisk) RecordTradeOpen(category string, amountUSD float64) {
	f.opens = append(f.opens, category)
}

type fakeBot struct{ allow bool }

func (f *fakeBot) AllowsNewTrades() bool { return f.allow }
func (f *fakeBot) NotifyOpenCount(ctx context.Context, n int) error { return nil }

type fakeExecLog struct {
	mu         sync.Mutex
	nextID     int64
	hasOpen    bool
	onCooldown bool
	logged     []domain.Execution
	failed     map[int64]string
}

func newFakeExecLog() *fakeExecLog { return &fakeExecLog{failed: make(map[int64]string)} }

func (f *fakeExecLog) LogExecution(ctx context.Context, e domain.Execution) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.logged = append(f.logged, e)
	return f.nextID, nil
}
func (f *fakeExecLog) FailExecution(ctx context.Context, id int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}
func (f *fakeExecLog) HasOpenPositionOnMarket(ctx context.Context, marketID string) (bool, error) {
	return f.hasOpen, nil
}
func (f *fakeExecLog) IsMarketOnCooldown(ctx context.Context, marketID string, minutes float64) (bool, error) {
	return f.onCooldown, nil
}
func (f *fakeExecLog) GetOpenCount(ctx context.Context) (int, error) { return 0, nil }

type fakeDecisions struct {
	mu       sync.Mutex
	outcomes []domain.DecisionOutcome
}

func (f *fakeDecisions) RecordOutcome(ctx context.Context, signal domain.Signal, outcome domain.DecisionOutcome, scores map[string]float64, trace []domain.GateResult) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return 1, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAudit) LogEvent(ctx context.Context, eventType string, executionID *int64, detail map[string]any, dryRun bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

type fakeLedger struct {
	mu        sync.Mutex
	positions []*domain.Position
}

func (f *fakeLedger) Register(p *domain.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = append(f.positions, p)
}

func (f *fakeLedger) Get(positionID string) *domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.positions {
		if p.PositionID == positionID {
			return p
		}
	}
	return nil
}

func baseSignal() domain.Signal {
	return domain.Signal{
		SignalID: "sig-1", MarketID: "mkt-1", Category: "sports",
		Action: domain.ActionEnter, Strength: domain.StrengthStrong, Side: domain.SideUp,
		UpTokenID: "tok-up", PriceUp: 0.60, EdgeUp: 0.08, Confidence: 70,
		SettlementLeftMin: 120, SpreadUp: 0.01,
	}
}

func newBridge(t *testing.T, clob *fakeClob, cfg *fakeConfig, risk *fakeRisk, bot *fakeBot, execLog *fakeExecLog, decisions *fakeDecisions, audit *fakeAudit, ledger *fakeLedger, opts bridge.Options) *bridge.Bridge {
	t.Helper()
	return bridge.New(&fakeSignalSource{}, clob, risk, bot, execLog, decisions, audit, ledger, cfg, fakeClock{now: time.Now()}, opts)
}

func TestEvaluate_DryRun_AllGatesPassRegistersPositionAndDecision(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}

	b := newBridge(t, &fakeClob{}, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: false})
	b.Evaluate(context.Background(), baseSignal())

	require.Len(t, execLog.logged, 1)
	assert.True(t, execLog.logged[0].DryRun)
	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeDryRun}, decisions.outcomes)
	assert.Contains(t, audit.events, domain.EventPositionOpened)
	assert.Len(t, ledger.positions, 1)
	assert.Equal(t, []string{"sports"}, risk.opens)
}

func TestEvaluate_BlockedByAdmission_RecordsBlockedWithNoSideEffects(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}

	b := newBridge(t, &fakeClob{}, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: false})

	signal := baseSignal()
	signal.Strength = domain.StrengthWeak
	b.Evaluate(context.Background(), signal)

	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeBlocked}, decisions.outcomes)
	assert.Empty(t, execLog.logged)
	assert.Empty(t, ledger.positions)
}

func TestEvaluate_BlockedByDedup_SkipsRemainingGates(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	execLog.hasOpen = true
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}

	b := newBridge(t, &fakeClob{}, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: false})
	b.Evaluate(context.Background(), baseSignal())

	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeBlocked}, decisions.outcomes)
	assert.Empty(t, execLog.logged)
}

func TestEvaluate_NoTokenID_RecordsBlockedWithTokenIDGate(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}

	b := newBridge(t, &fakeClob{}, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: false})

	signal := baseSignal()
	signal.UpTokenID = ""
	b.Evaluate(context.Background(), signal)

	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeBlocked}, decisions.outcomes)
	assert.Empty(t, execLog.logged)
}

func TestEvaluate_Live_RejectedOrderFailsExecutionAndAudits(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}
	clob := &fakeClob{
		balance: 1000,
		ladder:  domain.OrderBookLadder{BestAsk: 0.60, AskLiquidity: 1000},
		placeErr: errors.New("insufficient liquidity"),
	}

	b := newBridge(t, clob, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: true, MaxPollWindow: time.Second, PollInterval: 10 * time.Millisecond})
	b.Evaluate(context.Background(), baseSignal())

	require.Len(t, execLog.logged, 1)
	assert.Len(t, execLog.failed, 1)
	assert.Contains(t, audit.events, domain.EventOrderRejected)
	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeBlocked}, decisions.outcomes)
	require.Len(t, ledger.positions, 1)
	assert.Equal(t, domain.StateCancelled, ledger.positions[0].State)
}

func TestEvaluate_Live_FilledOrderRegistersPosition(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}
	clob := &fakeClob{
		balance:    1000,
		ladder:     domain.OrderBookLadder{BestAsk: 0.60, AskLiquidity: 1000},
		placed:     domain.PlacedOrder{OrderID: "ord-1"},
		orderState: domain.OrderState{Status: domain.ClobMatched, Size: 10, SizeMatched: 10},
	}

	b := newBridge(t, clob, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: true, MaxPollWindow: time.Second, PollInterval: 10 * time.Millisecond})
	b.Evaluate(context.Background(), baseSignal())

	require.Len(t, execLog.logged, 1)
	assert.Empty(t, execLog.failed)
	assert.Contains(t, audit.events, domain.EventOrderPlaced)
	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeExecuted}, decisions.outcomes)
	require.Len(t, ledger.positions, 1)
	assert.Equal(t, domain.StateEntered, ledger.positions[0].State)
}

func TestEvaluate_Live_InsufficientBalanceBlocks(t *testing.T) {
	cfg := defaultConfig()
	risk := &fakeRisk{decision: riskmgr.TradeDecision{Allowed: true}, betSize: 10}
	bot := &fakeBot{allow: true}
	execLog := newFakeExecLog()
	decisions := &fakeDecisions{}
	audit := &fakeAudit{}
	ledger := &fakeLedger{}
	clob := &fakeClob{balance: 1, ladder: domain.OrderBookLadder{BestAsk: 0.60, AskLiquidity: 1000}}

	b := newBridge(t, clob, cfg, risk, bot, execLog, decisions, audit, ledger, bridge.Options{Live: true})
	b.Evaluate(context.Background(), baseSignal())

	assert.Equal(t, []domain.DecisionOutcome{domain.OutcomeBlocked}, decisions.outcomes)
	assert.Empty(t, execLog.logged)
}
