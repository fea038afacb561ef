package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

func opp(prob, ret, confidence float64) domain.Opportunity {
	return domain.Opportunity{
		MarketID:             "mkt-1",
		EstimatedProbability: prob,
		ExpectedReturn:       ret,
		Confidence:           confidence,
	}
}

func TestSizeNegativeKellyClampsToMinStake(t *testing.T) {
	cfg := Defaults()
	cfg.SizeScale = 100
	s := New(cfg)

	// f = (1.5*0.125 - 0.875) / 1.5 ≈ -0.4583: the edge is too thin for the
	// implied odds, so the stake clamps to the floor instead of going
	// negative.
	got := s.Size(opp(0.125, 1.5, 80))
	assert.Equal(t, cfg.MinStake, got)
}

func TestSizePositiveKellyWithinBounds(t *testing.T) {
	s := New(Defaults())

	// f = (2*0.45 - 0.55) / 2 = 0.175; damped 0.0875; scaled 87.5;
	// confidence-scaled 35.
	got := s.Size(opp(0.45, 2.0, 40))
	assert.InDelta(t, 35.0, got, 1e-9)
}

func TestSizeClampsToMaxStake(t *testing.T) {
	s := New(Defaults())

	// f = (2*0.45 - 0.55) / 2 = 0.175; damped 0.0875; scaled 87.5; at full
	// confidence that exceeds the cap.
	got := s.Size(opp(0.45, 2.0, 100))
	assert.Equal(t, Defaults().MaxStake, got)
}

func TestSizeConfidenceScalesBeforeClamp(t *testing.T) {
	s := New(Defaults())

	// Same edge, lower confidence, smaller stake; the clamp applies after
	// confidence scaling, so these differ.
	high := s.Size(opp(0.45, 2.0, 60))
	low := s.Size(opp(0.45, 2.0, 40))
	assert.Greater(t, high, low)
}

func TestSizeDampingHalvesTheFraction(t *testing.T) {
	full := Defaults()
	full.KellyDamping = 1.0
	half := Defaults()
	half.KellyDamping = 0.5

	o := opp(0.45, 2.0, 20)
	assert.InDelta(t, New(full).Size(o)/2, New(half).Size(o), 1e-9)
}

func TestSizeNeverOutsideBounds(t *testing.T) {
	cfg := Defaults()
	s := New(cfg)

	for prob := 0.05; prob <= 0.45; prob += 0.05 {
		for ret := 0.3; ret <= 5.0; ret += 0.37 {
			for conf := 0.0; conf <= 100; conf += 12.5 {
				got := s.Size(opp(prob, ret, conf))
				assert.GreaterOrEqual(t, got, cfg.MinStake, "prob=%g ret=%g conf=%g", prob, ret, conf)
				assert.LessOrEqual(t, got, cfg.MaxStake, "prob=%g ret=%g conf=%g", prob, ret, conf)
			}
		}
	}
}
