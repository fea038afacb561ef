package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/edgescan/internal/domain"
	"github.com/alanyoungcy/edgescan/internal/engine"
)

// Event types the notifier filter recognizes.
const (
	EventOpportunityFound = "opportunity_found"
	EventPositionOpened   = "position_opened"
	EventPositionClosed   = "position_closed"
	EventCycleDegraded    = "cycle_degraded"
	EventStuckPending     = "stuck_pending"
)

// PositionOpenedMessage formats a position_opened alert.
func PositionOpenedMessage(p domain.Position) (title, message string) {
	title = "Position opened"
	message = fmt.Sprintf("%s\nOutcome: %s\nEntry %.3f, size %.2f (target %.2f / stop %.2f)",
		p.Question, p.Outcome, p.EntryPrice, p.Size, p.TargetExitPrice, p.StopLossPrice)
	return title, message
}

// PositionClosedMessage formats a position_closed alert.
func PositionClosedMessage(p domain.Position) (title, message string) {
	exit := 0.0
	if p.ExitPrice != nil {
		exit = *p.ExitPrice
	}
	title = fmt.Sprintf("Position closed (%s)", p.CloseReason)
	message = fmt.Sprintf("%s\nOutcome: %s\nEntry %.3f → exit %.3f, size %.2f",
		p.Question, p.Outcome, p.EntryPrice, exit, p.Size)
	return title, message
}

// CycleDegradedMessage formats an alert for a cycle that finished in a
// degraded or failed state.
func CycleDegradedMessage(result engine.CycleResult) (title, message string) {
	title = fmt.Sprintf("Scan cycle %s", result.Status)
	var b strings.Builder
	fmt.Fprintf(&b, "Opportunities %d, opened %d, closed %d.",
		len(result.Opportunities), len(result.Opened), len(result.Closed))
	if result.Err != nil {
		fmt.Fprintf(&b, "\nError: %v", result.Err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "\n- %s", w)
	}
	return title, b.String()
}

// StuckPendingMessage formats the data-integrity alert for a position stuck
// in the pending state.
func StuckPendingMessage(p domain.Position) (title, message string) {
	title = "Stuck pending position"
	message = fmt.Sprintf("%s\nPosition %s on market %s has been pending for %d cycles and needs manual resolution.",
		p.Question, p.ID, p.MarketID, p.PendingCycles)
	return title, message
}
