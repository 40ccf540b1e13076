package domain

import "time"

// StatusSnapshot is the data behind the `tradingcore -status` console report,
// mirroring the teacher's compact/table console output with this domain's
// fields in place of the scanner's opportunity list.
type StatusSnapshot struct {
	GeneratedAt      time.Time
	BotState         BotState
	OpenPositions    int
	OpenExposureUSD  float64
	DailyPnLUSD      float64
	CircuitBreakerOn bool
	RecentDecisions  []DecisionRecord
}
