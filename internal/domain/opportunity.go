package domain

import "sort"

// Opportunity is a scored candidate mispricing on one market outcome. It is
// derived and transient: opportunities are recomputed every cycle and never
// persisted.
type Opportunity struct {
	MarketID             string  `json:"market_id"`
	Question             string  `json:"question"`
	OutcomeName          string  `json:"outcome_name"`
	MarketPrice          float64 `json:"market_price"`
	EstimatedProbability float64 `json:"estimated_probability"`
	ExpectedReturn       float64 `json:"expected_return"`
	Confidence           float64 `json:"confidence"`
}

// SortOpportunities orders opportunities by expected return descending, ties
// broken by confidence descending, then market ID ascending. The sort is
// stable so equal candidates keep their input order, which makes cycle output
// deterministic and testable.
func SortOpportunities(opps []Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.ExpectedReturn != b.ExpectedReturn {
			return a.ExpectedReturn > b.ExpectedReturn
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.MarketID < b.MarketID
	})
}
