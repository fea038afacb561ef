package domain

import "time"

// PositionStatus tracks where a position is in its lifecycle.
type PositionStatus string

const (
	// PositionStatusOpen is a live position being tracked for exits.
	PositionStatusOpen PositionStatus = "open"
	// PositionStatusClosed is terminal; a closed position is never resurrected.
	PositionStatusClosed PositionStatus = "closed"
	// PositionStatusPending is a position awaiting confirmation of execution.
	// It must become open or be discarded before the next cycle completes;
	// a position that stays pending across two persisted snapshots is a
	// data-integrity problem surfaced to the operator.
	PositionStatusPending PositionStatus = "pending"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	CloseReasonTakeProfit CloseReason = "take-profit"
	CloseReasonStopLoss   CloseReason = "stop-loss"
	CloseReasonManual     CloseReason = "manual"
)

// Position is a committed (simulated) stake in a market outcome, tracked
// through the open/closed lifecycle. Positions are owned exclusively by the
// position store; the orchestrator only works on them within a cycle.
type Position struct {
	ID              string         `json:"id"`
	MarketID        string         `json:"market_id"`
	Question        string         `json:"question"`
	Outcome         string         `json:"outcome"`
	EntryPrice      float64        `json:"entry_price"`
	EntryTime       time.Time      `json:"entry_time"`
	Size            float64        `json:"size"`
	TargetExitPrice float64        `json:"target_exit_price"`
	StopLossPrice   float64        `json:"stop_loss_price"`
	Status          PositionStatus `json:"status"`

	// PendingCycles counts how many persisted snapshots this position has
	// spent in the pending state. Two or more means it is stuck.
	PendingCycles int `json:"pending_cycles,omitempty"`

	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
	ExitPrice   *float64    `json:"exit_price,omitempty"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
}

// DaysHeld returns the number of whole days the position has been held.
func (p Position) DaysHeld(now time.Time) int {
	return int(now.Sub(p.EntryTime).Hours() / 24)
}
