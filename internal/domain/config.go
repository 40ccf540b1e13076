package domain

import "time"

// ConfigKind constrains how a Config Store value is validated.
type ConfigKind string

const (
	KindNumber  ConfigKind = "number"
	KindInteger ConfigKind = "integer"
)

// ConfigRule is the range/type validation rule for one Config Store key
// (spec.md §3: "Every key has a validation rule {min, max, type}").
type ConfigRule struct {
	Min  float64
	Max  float64
	Kind ConfigKind
}

// Valid reports whether value satisfies the rule.
func (r ConfigRule) Valid(value float64) bool {
	if value < r.Min || value > r.Max {
		return false
	}
	if r.Kind == KindInteger && value != float64(int64(value)) {
		return false
	}
	return true
}

// Recognized Config Store keys (spec.md §4.1).
const (
	KeyMaxBetUSD                = "max_bet_usd"
	KeyDailyLossLimitUSD        = "daily_loss_limit_usd"
	KeyMaxOpenPositions         = "max_open_positions"
	KeyTakeProfitPct            = "take_profit_pct"
	KeyStopLossPct              = "stop_loss_pct"
	KeyMaxTotalExposureUSD      = "max_total_exposure_usd"
	KeyMaxCategoryConcentration = "max_category_concentration_pct"
	KeyMaxSlippagePct           = "max_slippage_pct"
	KeyMinBalanceUSD            = "min_balance_usd"
	KeyTrailingStopPct          = "trailing_stop_pct"
	KeyBreakevenTriggerPct      = "breakeven_trigger_pct"
	KeyMaxHoldHours             = "max_hold_hours"
	KeyMinSettlementMinutes     = "min_settlement_minutes"
	KeyMaxSpread                = "max_spread"
)

// DefaultRules returns the validation rule set for every recognized key.
func DefaultRules() map[string]ConfigRule {
	return map[string]ConfigRule{
		KeyMaxBetUSD:                {Min: 1, Max: 100000, Kind: KindNumber},
		KeyDailyLossLimitUSD:        {Min: 1, Max: 1000000, Kind: KindNumber},
		KeyMaxOpenPositions:         {Min: 1, Max: 1000, Kind: KindInteger},
		KeyTakeProfitPct:            {Min: 0.1, Max: 500, Kind: KindNumber},
		KeyStopLossPct:              {Min: -500, Max: -0.1, Kind: KindNumber},
		KeyMaxTotalExposureUSD:      {Min: 1, Max: 10000000, Kind: KindNumber},
		KeyMaxCategoryConcentration: {Min: 1, Max: 100, Kind: KindNumber},
		KeyMaxSlippagePct:           {Min: 0.01, Max: 50, Kind: KindNumber},
		KeyMinBalanceUSD:            {Min: 0, Max: 1000000, Kind: KindNumber},
		KeyTrailingStopPct:          {Min: 0.1, Max: 100, Kind: KindNumber},
		KeyBreakevenTriggerPct:      {Min: 0.1, Max: 500, Kind: KindNumber},
		KeyMaxHoldHours:             {Min: 0.1, Max: 24 * 30, Kind: KindNumber},
		KeyMinSettlementMinutes:     {Min: 0, Max: 10000, Kind: KindNumber},
		KeyMaxSpread:                {Min: 0.001, Max: 1, Kind: KindNumber},
	}
}

// DefaultValues seeds the Config Store on first boot.
func DefaultValues() map[string]float64 {
	return map[string]float64{
		KeyMaxBetUSD:                25,
		KeyDailyLossLimitUSD:        100,
		KeyMaxOpenPositions:         10,
		KeyTakeProfitPct:            15,
		KeyStopLossPct:              -10,
		KeyMaxTotalExposureUSD:      500,
		KeyMaxCategoryConcentration: 40,
		KeyMaxSlippagePct:           2,
		KeyMinBalanceUSD:            10,
		KeyTrailingStopPct:          5,
		KeyBreakevenTriggerPct:      8,
		KeyMaxHoldHours:             48,
		KeyMinSettlementMinutes:     10,
		KeyMaxSpread:                0.05,
	}
}

// ConfigValue is one persisted key/value row (spec.md §3).
type ConfigValue struct {
	Key       string
	Value     float64
	UpdatedAt time.Time
	UpdatedBy string
}

// ConfigUpdateResult is returned by Config Store's update operation.
type ConfigUpdateResult struct {
	Updated  []string
	Errors   map[string]string
	Warnings map[string]string
}
