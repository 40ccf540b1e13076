// Package notify implements ports.Console (operator status reporting) and
// ports.WebhookTransport (outbound delivery), generalizing the teacher's
// console reporter (internal/adapters/notify/console.go) from an
// opportunity table to a bot status snapshot.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Console, printing a status snapshot to stdout.
type Console struct {
	out io.Writer
}

// NewConsole creates a console reporter writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a console reporter for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// ReportStatus prints the bot's current run state, exposure, and recent
// decisions, following the teacher's compact-header-then-table shape.
func (c *Console) ReportStatus(_ context.Context, snap domain.StatusSnapshot) error {
	fmt.Fprintf(c.out, "\n[%s] state=%s open=%d exposure=$%.2f daily_pnl=$%.2f breaker=%v\n",
		snap.GeneratedAt.Format("15:04:05"), snap.BotState, snap.OpenPositions,
		snap.OpenExposureUSD, snap.DailyPnLUSD, snap.CircuitBreakerOn)

	if len(snap.RecentDecisions) == 0 {
		fmt.Fprintln(c.out, "  no recent decisions")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Signal", "Market", "Outcome", "Gates", "Blocking")
	for _, d := range snap.RecentDecisions {
		gates := fmt.Sprintf("%d/%d", d.GatesPassed, d.GatesTotal)
		table.Append(d.SignalID, truncate(d.MarketID, 24), string(d.Outcome), gates, d.BlockingGate)
	}
	table.Render()
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatAge renders a duration the way an operator reads it at a glance.
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
