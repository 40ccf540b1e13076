package domain

// BotState is the coarse run-state of the bot (spec.md §3/§4.2).
type BotState string

const (
	BotRunning  BotState = "running"
	BotPaused   BotState = "paused"
	BotStopped  BotState = "stopped"
	BotDraining BotState = "draining"
)

// AllowsNewTrades reports whether the bridge may admit new trades in this
// state.
func (s BotState) AllowsNewTrades() bool {
	return s == BotRunning
}

// MonitorActive reports whether the settlement monitor should keep running
// in this state.
func (s BotState) MonitorActive() bool {
	return s == BotRunning || s == BotPaused || s == BotDraining
}

// BotControlRow is the singleton bot_control row (spec.md §3).
type BotControlRow struct {
	State     BotState
	ChangedAt string
	Reason    string
}
