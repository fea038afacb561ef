// Package domain defines the core data types and interfaces shared across the
// scanner: market snapshots, scored opportunities, positions, and the
// persistence and messaging contracts their consumers depend on.
package domain

import "time"

// Outcome is one side of a market with its current price. Prices are
// probabilities-as-prices: any real quote satisfies 0 < price < 1. A price of
// exactly 0 or 1 has undefined odds and is excluded from scoring.
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MarketSnapshot is a point-in-time view of one market's outcomes, prices,
// liquidity, volume, and close date. It is supplied by an external market-data
// fetcher and never mutated by the core.
type MarketSnapshot struct {
	MarketID  string     `json:"market_id"`
	Question  string     `json:"question"`
	Outcomes  []Outcome  `json:"outcomes"`
	Liquidity float64    `json:"liquidity"`
	Volume    float64    `json:"volume"`
	CloseTime *time.Time `json:"close_time,omitempty"`
}

// DaysUntilClose returns the number of whole days between now and the
// snapshot's close time, and whether a close time is known at all.
func (s MarketSnapshot) DaysUntilClose(now time.Time) (int, bool) {
	if s.CloseTime == nil {
		return 0, false
	}
	return int(s.CloseTime.Sub(now).Hours() / 24), true
}
