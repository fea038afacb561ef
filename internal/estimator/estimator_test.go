package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

func snap(question string, liquidity float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  "m1",
		Question:  question,
		Liquidity: liquidity,
	}
}

func TestEstimateBaseCase(t *testing.T) {
	est := New(Defaults())

	// Thin market, neutral category: price scaled by the base multiplier only.
	got := est.Estimate(snap("Will it rain in Paris?", 10_000), domain.Outcome{Name: "Yes", Price: 0.05})
	assert.InDelta(t, 0.125, got, 1e-9)
}

func TestEstimateLiquidityFactor(t *testing.T) {
	est := New(Defaults())
	out := domain.Outcome{Name: "Yes", Price: 0.10}

	tests := []struct {
		name      string
		liquidity float64
		want      float64
	}{
		{"below mid threshold unadjusted", 99_999, 0.25},
		{"mid liquidity damped", 100_000, 0.225},
		{"high liquidity damped harder", 1_000_000, 0.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := est.Estimate(snap("Will it rain in Paris?", tt.liquidity), out)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEstimateCategoryFactor(t *testing.T) {
	est := New(Defaults())
	out := domain.Outcome{Name: "Yes", Price: 0.10}

	tests := []struct {
		name     string
		question string
		want     float64
	}{
		{"political boosted", "Will Trump win the election?", 0.325},
		{"sports damped", "Will the NBA finals go to game 7?", 0.225},
		{"crypto boosted", "Will Bitcoin close above 100k?", 0.30},
		{"neutral unadjusted", "Will it snow in Oslo?", 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := est.Estimate(snap(tt.question, 10_000), out)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEstimateMatchingIsCaseInsensitive(t *testing.T) {
	est := New(Defaults())
	out := domain.Outcome{Name: "Yes", Price: 0.10}

	upper := est.Estimate(snap("WILL TRUMP WIN?", 10_000), out)
	lower := est.Estimate(snap("will trump win?", 10_000), out)
	assert.Equal(t, lower, upper)
}

func TestEstimateSportsBeatsCryptoOnOverlap(t *testing.T) {
	est := New(Defaults())
	out := domain.Outcome{Name: "Yes", Price: 0.10}

	// "win" matches sports before "bitcoin" is considered; first matching
	// category wins.
	got := est.Estimate(snap("Will Bitcoin win the year?", 10_000), out)
	assert.InDelta(t, 0.30*0.9/1.2, got, 1e-9)
}

func TestEstimateCapped(t *testing.T) {
	est := New(Defaults())

	// 0.14 * 2.5 * 1.3 = 0.455 > cap.
	got := est.Estimate(snap("Will Biden run?", 10_000), domain.Outcome{Name: "Yes", Price: 0.14})
	assert.Equal(t, 0.45, got)
}

func TestEstimateZeroOrNegativePrice(t *testing.T) {
	est := New(Defaults())

	assert.Zero(t, est.Estimate(snap("anything", 10_000), domain.Outcome{Price: 0}))
	assert.Zero(t, est.Estimate(snap("anything", 10_000), domain.Outcome{Price: -0.01}))
}

func TestEstimateAlwaysWithinBounds(t *testing.T) {
	est := New(Defaults())

	questions := []string{"Will Trump win?", "NBA champion?", "Bitcoin above 1M?", "Plain question"}
	liquidities := []float64{0, 5_000, 100_000, 500_000, 1_000_000, 10_000_000}

	for _, q := range questions {
		for _, liq := range liquidities {
			for price := 0.001; price <= 1.0; price += 0.013 {
				got := est.Estimate(snap(q, liq), domain.Outcome{Name: "Yes", Price: price})
				assert.Greater(t, got, 0.0, "q=%s liq=%g price=%g", q, liq, price)
				assert.LessOrEqual(t, got, 0.45, "q=%s liq=%g price=%g", q, liq, price)
			}
		}
	}
}
