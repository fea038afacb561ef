// Package polymarket is the market-data collaborator: a REST client for the
// Polymarket Gamma API that assembles the snapshot list the engine consumes.
// Pagination, rate limiting, and transport errors are handled here; the core
// never paginates.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

const (
	pageSize = 100
	// fanOut is how many pages are requested concurrently. Snapshot pages are
	// independent and read-only, so fan-out is safe; everything downstream of
	// the fetch is strictly sequential.
	fanOut = 4
	// maxPages bounds a single fetch so a pathological API response cannot
	// spin forever.
	maxPages = 50
)

// GammaClient fetches active markets from the Polymarket Gamma API and
// implements domain.SnapshotSource.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a Gamma API client. baseURL is the API root, e.g.
// "https://gamma-api.polymarket.com". timeout applies per request.
func NewGammaClient(baseURL string, timeout time.Duration, logger *slog.Logger) *GammaClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "gamma_client")),
	}
}

// Snapshots returns the current set of active, non-archived markets as
// snapshots. Pages are fetched with bounded concurrency and the fetch stops
// at the first short page. Markets that fail to decode are skipped, not
// fatal.
func (g *GammaClient) Snapshots(ctx context.Context) ([]domain.MarketSnapshot, error) {
	var (
		mu      sync.Mutex
		byPage  = map[int][]domain.MarketSnapshot{}
		done    bool
		nextOff = 0
	)

	for page := 0; page < maxPages && !done; page += fanOut {
		grp, grpCtx := errgroup.WithContext(ctx)

		for i := 0; i < fanOut; i++ {
			offset := nextOff + i*pageSize
			pageIdx := page + i
			grp.Go(func() error {
				snaps, err := g.fetchPage(grpCtx, offset)
				if err != nil {
					return err
				}
				mu.Lock()
				byPage[pageIdx] = snaps
				if len(snaps) < pageSize {
					done = true
				}
				mu.Unlock()
				return nil
			})
		}

		if err := grp.Wait(); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: fetch markets: %w", err)
		}
		nextOff += fanOut * pageSize
	}

	var snapshots []domain.MarketSnapshot
	for page := 0; ; page++ {
		snaps, ok := byPage[page]
		if !ok {
			break
		}
		snapshots = append(snapshots, snaps...)
		if len(snaps) < pageSize {
			break
		}
	}

	g.logger.InfoContext(ctx, "fetched market snapshots",
		slog.Int("count", len(snapshots)),
	)
	return snapshots, nil
}

// fetchPage fetches one page of active markets and converts it to snapshots.
func (g *GammaClient) fetchPage(ctx context.Context, offset int) ([]domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("closed", "false")
	params.Set("archived", "false")
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(offset))

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("page at offset %d: %w", offset, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("decode page at offset %d: %w", offset, err)
	}

	snaps := make([]domain.MarketSnapshot, 0, len(apiMarkets))
	for i := range apiMarkets {
		snap, err := apiMarkets[i].ToSnapshot()
		if err != nil {
			g.logger.WarnContext(ctx, "skipping undecodable market",
				slog.String("market_id", apiMarkets[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// CurrentPrice fetches the live price of one outcome of a market, used by the
// exit checker when the cache has no fresh value. The false return means the
// market or outcome is not quotable right now.
func (g *GammaClient) CurrentPrice(ctx context.Context, marketID, outcome string) (float64, bool, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return 0, false, fmt.Errorf("polymarket/gamma: get market %s: %w", marketID, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return 0, false, fmt.Errorf("polymarket/gamma: decode market %s: %w", marketID, err)
	}

	snap, err := apiMarket.ToSnapshot()
	if err != nil {
		return 0, false, nil
	}
	for _, out := range snap.Outcomes {
		if out.Name == outcome && out.Price > 0 {
			return out.Price, true, nil
		}
	}
	return 0, false, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, string(body))
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
