// Package scanner screens market snapshots and scores the survivors into
// ranked opportunities. Screening is a short-circuit pipeline ordered cheapest
// check first; only candidates passing every hard threshold are emitted.
package scanner

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
	"github.com/alanyoungcy/edgescan/internal/estimator"
)

// Config holds the hard screening thresholds and confidence bonuses.
type Config struct {
	// MinLiquidity rejects thin markets outright.
	MinLiquidity float64
	// MaxPriceCeiling is the highest outcome price still considered a
	// long-shot worth scoring.
	MaxPriceCeiling float64
	// MinExpectedReturn is the strict floor an opportunity must exceed or
	// meet; it must be positive so the sizer's odds term is always defined.
	MinExpectedReturn float64
	// MinDaysRemaining rejects markets resolving too soon to act on.
	MinDaysRemaining int
}

// Defaults returns the screening thresholds the scanner ships with.
func Defaults() Config {
	return Config{
		MinLiquidity:      5_000,
		MaxPriceCeiling:   0.15,
		MinExpectedReturn: 0.30,
		MinDaysRemaining:  7,
	}
}

// Skip records why a market or outcome was rejected during screening, so a
// cycle result can distinguish "no opportunities" from "everything screened
// out" and why.
type Skip struct {
	MarketID string `json:"market_id"`
	Reason   string `json:"reason"`
}

// Scorer screens snapshots and scores surviving outcomes.
type Scorer struct {
	cfg Config
	est *estimator.Estimator
	now func() time.Time
}

// New creates a Scorer using the given thresholds and probability estimator.
func New(cfg Config, est *estimator.Estimator) *Scorer {
	return &Scorer{cfg: cfg, est: est, now: time.Now}
}

// Score evaluates one snapshot and returns any opportunities it yields plus
// skip records for everything rejected. It is a pure function of its input
// and the clock: re-scoring the same snapshot yields the same result.
func (s *Scorer) Score(snap domain.MarketSnapshot) ([]domain.Opportunity, []Skip) {
	if snap.MarketID == "" || len(snap.Outcomes) == 0 {
		return nil, []Skip{{MarketID: snap.MarketID, Reason: "malformed snapshot"}}
	}

	if snap.Liquidity < s.cfg.MinLiquidity {
		return nil, []Skip{{
			MarketID: snap.MarketID,
			Reason:   fmt.Sprintf("liquidity %.0f below floor %.0f", snap.Liquidity, s.cfg.MinLiquidity),
		}}
	}

	now := s.now()
	if days, known := snap.DaysUntilClose(now); known && days < s.cfg.MinDaysRemaining {
		return nil, []Skip{{
			MarketID: snap.MarketID,
			Reason:   fmt.Sprintf("resolves in %d days, need %d", days, s.cfg.MinDaysRemaining),
		}}
	}

	var opps []domain.Opportunity
	var skips []Skip
	for _, out := range snap.Outcomes {
		if out.Price <= 0 || out.Price > s.cfg.MaxPriceCeiling {
			// Empty odds or not a long shot; not worth a per-outcome skip
			// record for every well-priced outcome in the book.
			continue
		}

		prob := s.est.Estimate(snap, out)
		if prob <= 0 {
			continue
		}

		expectedReturn := prob/out.Price - 1
		if expectedReturn < s.cfg.MinExpectedReturn {
			skips = append(skips, Skip{
				MarketID: snap.MarketID,
				Reason:   fmt.Sprintf("outcome %q return %.2f below floor %.2f", out.Name, expectedReturn, s.cfg.MinExpectedReturn),
			})
			continue
		}

		opps = append(opps, domain.Opportunity{
			MarketID:             snap.MarketID,
			Question:             snap.Question,
			OutcomeName:          out.Name,
			MarketPrice:          out.Price,
			EstimatedProbability: prob,
			ExpectedReturn:       expectedReturn,
			Confidence:           s.confidence(snap, out, now),
		})
	}

	return opps, skips
}

// confidence scores a candidate from 0 to 100. The bonuses are independent and
// additive; the clamp to 100 is applied last.
func (s *Scorer) confidence(snap domain.MarketSnapshot, out domain.Outcome, now time.Time) float64 {
	score := 50.0

	switch {
	case snap.Liquidity > 500_000:
		score += 20
	case snap.Liquidity > 100_000:
		score += 10
	}

	switch {
	case snap.Volume > 1_000_000:
		score += 15
	case snap.Volume > 100_000:
		score += 5
	}

	if days, known := snap.DaysUntilClose(now); known {
		switch {
		case days >= 7 && days <= 30:
			score += 10
		case days > 30:
			score += 5
		}
	}

	// Very low prices leave the most room for mispricing.
	if out.Price < 0.05 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Rank sorts opportunities into the deterministic output order: expected
// return descending, confidence descending, market ID ascending.
func Rank(opps []domain.Opportunity) []domain.Opportunity {
	domain.SortOpportunities(opps)
	return opps
}
