// Package sizing converts scored opportunities into capital allocations using
// a damped fractional-Kelly rule.
package sizing

import "github.com/alanyoungcy/edgescan/internal/domain"

// Config holds the sizing parameters.
type Config struct {
	// SizeScale is the bankroll unit a Kelly fraction is multiplied into.
	SizeScale float64
	// KellyDamping scales the raw Kelly fraction down; 0.5 is half-Kelly.
	KellyDamping float64
	// MinStake and MaxStake bound the final allocation.
	MinStake float64
	MaxStake float64
}

// Defaults returns the sizing parameters the scanner ships with.
func Defaults() Config {
	return Config{
		SizeScale:    1_000,
		KellyDamping: 0.5,
		MinStake:     10,
		MaxStake:     50,
	}
}

// Sizer computes stakes. It is deterministic and has no side effects.
type Sizer struct {
	cfg Config
}

// New creates a Sizer.
func New(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size converts an opportunity into a stake.
//
// Precondition (contract, not a runtime check): opp.ExpectedReturn > 0. The
// scorer's screen guarantees every emitted opportunity clears a positive
// minimum expected return, so the Kelly odds term b is always defined at this
// call site. Callers that bypass the scorer own the consequences.
//
// The computation order is load-bearing: Kelly fraction, then damping, then
// scale, then confidence scaling, then the hard clamp. Reordering changes the
// effective risk profile. A negative Kelly fraction (edge too thin for the
// implied odds) falls through to the MinStake clamp rather than going
// negative.
func (s *Sizer) Size(opp domain.Opportunity) float64 {
	p := opp.EstimatedProbability
	b := opp.ExpectedReturn
	q := 1 - p

	kelly := (b*p - q) / b
	damped := kelly * s.cfg.KellyDamping
	raw := damped * s.cfg.SizeScale
	final := raw * (opp.Confidence / 100)

	if final < s.cfg.MinStake {
		return s.cfg.MinStake
	}
	if final > s.cfg.MaxStake {
		return s.cfg.MaxStake
	}
	return final
}
