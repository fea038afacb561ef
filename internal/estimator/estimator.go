// Package estimator converts raw market prices into estimated "true"
// probabilities using adjustable heuristics. The model is deliberately crude:
// it encodes the belief that low-price outcomes are systematically underpriced
// and dampens that belief for liquid markets and well-priced categories.
package estimator

import (
	"strings"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// Config holds the estimator heuristics. All fields are required; use
// Defaults() as a starting point.
type Config struct {
	// BaseMultiplier scales the raw price upward before adjustments.
	BaseMultiplier float64
	// MaxProbability caps every estimate. The estimator never claims a
	// long-shot outcome exceeds this true probability.
	MaxProbability float64
	// Liquidity thresholds for the step-down factor. Markets at or above
	// HighLiquidity get HighLiquidityFactor, at or above MidLiquidity get
	// MidLiquidityFactor, everything below is unadjusted.
	HighLiquidity       float64
	MidLiquidity        float64
	HighLiquidityFactor float64
	MidLiquidityFactor  float64
}

// Defaults returns the estimator parameters the scanner ships with.
func Defaults() Config {
	return Config{
		BaseMultiplier:      2.5,
		MaxProbability:      0.45,
		HighLiquidity:       1_000_000,
		MidLiquidity:        100_000,
		HighLiquidityFactor: 0.8,
		MidLiquidityFactor:  0.9,
	}
}

// Keyword groups for the category factor. Matching is case-insensitive
// substring match against the market question.
var (
	politicalKeywords = []string{"trump", "election", "biden", "vote"}
	sportsKeywords    = []string{"nba", "nfl", "score", "win"}
	cryptoKeywords    = []string{"bitcoin", "ethereum", "crypto"}
)

// Estimator computes heuristic true-probability estimates from snapshots.
type Estimator struct {
	cfg Config
}

// New creates an Estimator with the given heuristics.
func New(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate returns the estimated true probability for one outcome of the
// snapshot, always in (0, MaxProbability] for any price in (0, 1]. A missing
// or zero price yields 0, which downstream screening excludes; no error path
// is needed when screening runs first.
func (e *Estimator) Estimate(snap domain.MarketSnapshot, outcome domain.Outcome) float64 {
	if outcome.Price <= 0 {
		return 0
	}

	p := outcome.Price * e.cfg.BaseMultiplier * e.liquidityFactor(snap.Liquidity) * categoryFactor(snap.Question)

	if p > e.cfg.MaxProbability {
		p = e.cfg.MaxProbability
	}
	return p
}

// liquidityFactor steps the estimate down as liquidity grows: more liquid
// markets are assumed closer to fair value. The function is monotonically
// non-increasing in liquidity.
func (e *Estimator) liquidityFactor(liquidity float64) float64 {
	switch {
	case liquidity >= e.cfg.HighLiquidity:
		return e.cfg.HighLiquidityFactor
	case liquidity >= e.cfg.MidLiquidity:
		return e.cfg.MidLiquidityFactor
	default:
		return 1.0
	}
}

// categoryFactor adjusts by keyword match against the market question.
// Political events tend to be underpriced, sports pricing is comparatively
// sharp, crypto markets swing wide.
func categoryFactor(question string) float64 {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, politicalKeywords):
		return 1.3
	case containsAny(q, sportsKeywords):
		return 0.9
	case containsAny(q, cryptoKeywords):
		return 1.2
	default:
		return 1.0
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
