package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// flexFloat unmarshals from a JSON number or a numeric string, since the
// Gamma API sends volume/liquidity either way depending on endpoint version.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket is a market as returned by the Gamma API. Outcomes and their
// prices arrive as JSON-encoded string arrays ("[\"Yes\",\"No\"]").
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Outcomes      string    `json:"outcomes"`
	OutcomePrices string    `json:"outcomePrices"`
	Liquidity     flexFloat `json:"liquidity"`
	Volume        flexFloat `json:"volume"`
	EndDate       string    `json:"endDate"`
	EndDateISO    string    `json:"end_date_iso"`
	Closed        bool      `json:"closed"`
}

// ToSnapshot converts an APIMarket to a domain.MarketSnapshot, decoding the
// string-encoded outcome arrays. Markets without a usable ID or outcome list
// are rejected so malformed feed entries never enter scoring.
func (m *APIMarket) ToSnapshot() (domain.MarketSnapshot, error) {
	if strings.TrimSpace(m.ID) == "" {
		return domain.MarketSnapshot{}, fmt.Errorf("market missing id")
	}

	var names []string
	if m.Outcomes != "" {
		if err := json.Unmarshal([]byte(m.Outcomes), &names); err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("decode outcomes: %w", err)
		}
	}
	if len(names) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("market %s has no outcomes", m.ID)
	}

	var priceStrs []string
	if m.OutcomePrices != "" {
		if err := json.Unmarshal([]byte(m.OutcomePrices), &priceStrs); err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("decode outcome prices: %w", err)
		}
	}

	outcomes := make([]domain.Outcome, len(names))
	for i, name := range names {
		outcomes[i] = domain.Outcome{Name: name}
		if i < len(priceStrs) {
			// A malformed price leaves the outcome at 0, which downstream
			// screening excludes; one bad field never drops the market.
			if p, err := strconv.ParseFloat(priceStrs[i], 64); err == nil {
				outcomes[i].Price = p
			}
		}
	}

	snap := domain.MarketSnapshot{
		MarketID:  m.ID,
		Question:  m.Question,
		Outcomes:  outcomes,
		Liquidity: float64(m.Liquidity),
		Volume:    float64(m.Volume),
	}

	for _, raw := range []string{m.EndDate, m.EndDateISO} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			snap.CloseTime = &t
			break
		}
	}

	return snap, nil
}
