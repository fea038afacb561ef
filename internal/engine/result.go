package engine

import (
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
	"github.com/alanyoungcy/edgescan/internal/scanner"
)

// CycleStatus summarizes how a cycle went, so a caller can distinguish "no
// opportunities found" from "fetch degraded" from "persist failed".
type CycleStatus string

const (
	// CycleOK means every step completed.
	CycleOK CycleStatus = "ok"
	// CycleDegraded means the cycle completed but something external
	// misbehaved: the fetch failed, or a data-integrity warning was raised.
	CycleDegraded CycleStatus = "degraded"
	// CycleFailed means the cycle could not complete; durable state was left
	// at its last successfully saved value.
	CycleFailed CycleStatus = "failed"
)

// ReviewFlag marks an open position that needs operator attention. Flags are
// advisory: the engine never auto-closes on a flag, because realizing P&L
// requires price confirmation.
type ReviewFlag struct {
	MarketID string `json:"market_id"`
	Question string `json:"question"`
	Reason   string `json:"reason"`
	DaysHeld int    `json:"days_held"`
}

// CycleResult is the per-cycle outcome handed to reporting and notification.
type CycleResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status        CycleStatus          `json:"status"`
	Opportunities []domain.Opportunity `json:"opportunities"`
	Opened        []domain.Position    `json:"opened"`
	Closed        []domain.Position    `json:"closed"`
	Flagged       []ReviewFlag         `json:"flagged,omitempty"`
	Skipped       []scanner.Skip       `json:"skipped,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`

	// Err is set when Status is failed; it is also returned from RunCycle.
	Err error `json:"-"`
}

func (r CycleResult) String() string {
	return string(r.Status)
}
