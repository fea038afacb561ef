// Package feed supplies current prices to the exit checker. The cached source
// reads through a price cache to a live lookup, so repeated exit checks within
// a cycle window do not hammer the market API.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// CachedPrices is a read-through domain.PriceSource: cache first, live lookup
// on miss, write-back on success. A nil cache degrades to live lookups only.
type CachedPrices struct {
	cache    domain.PriceCache
	live     domain.PriceSource
	maxStale time.Duration
	logger   *slog.Logger
}

// NewCachedPrices creates a CachedPrices source. maxStale bounds how old a
// cached price may be before a live refresh is attempted.
func NewCachedPrices(cache domain.PriceCache, live domain.PriceSource, maxStale time.Duration, logger *slog.Logger) *CachedPrices {
	return &CachedPrices{
		cache:    cache,
		live:     live,
		maxStale: maxStale,
		logger:   logger.With(slog.String("component", "price_feed")),
	}
}

// CurrentPrice returns the freshest obtainable price for the outcome. A false
// return means no price is obtainable; the exit checker then falls back to
// time-based checks only.
func (cp *CachedPrices) CurrentPrice(ctx context.Context, marketID, outcome string) (float64, bool, error) {
	if cp.cache != nil {
		price, ts, err := cp.cache.GetPrice(ctx, marketID, outcome)
		switch {
		case err == nil && time.Since(ts) <= cp.maxStale:
			return price, true, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			cp.logger.WarnContext(ctx, "price cache read failed",
				slog.String("market", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if cp.live == nil {
		return 0, false, nil
	}

	price, ok, err := cp.live.CurrentPrice(ctx, marketID, outcome)
	if err != nil || !ok {
		return 0, false, err
	}

	if cp.cache != nil {
		if err := cp.cache.SetPrice(ctx, marketID, outcome, price, time.Now().UTC()); err != nil {
			cp.logger.WarnContext(ctx, "price cache write failed",
				slog.String("market", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return price, true, nil
}
