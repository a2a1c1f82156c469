// Package polygon implements the price-history and market-snapshot client:
// previous-session aggregates, daily ranges, dividends, movers, and
// reference ticker search.
//
// Docs: https://polygon.io/docs/stocks
package polygon

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finbrowse/stockcards/internal/upstream"
	"github.com/finbrowse/stockcards/pkg/models"
)

const defaultBaseURL = "https://api.polygon.io"

// Client is a Polygon API client. The API key is injected at construction;
// a missing key surfaces as upstream.ErrMissingCredential on first use.
type Client struct {
	apiKey  string
	baseURL string
	cache   *upstream.Cache
	limiter *upstream.RateLimiter
}

// New creates a Polygon client with the given API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		cache:   upstream.NewCache(1 * time.Minute),
		limiter: upstream.NewRateLimiter(5, time.Second),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

func (c *Client) checkKey() error {
	if c.apiKey == "" {
		return fmt.Errorf("polygon: %w", upstream.ErrMissingCredential)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	if err := c.checkKey(); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)
	return upstream.GetJSON(ctx, c.baseURL+path+"?"+params.Encode(), nil, dest)
}

type aggsResponse struct {
	Ticker       string             `json:"ticker"`
	ResultsCount int                `json:"resultsCount"`
	Results      []models.Aggregate `json:"results"`
}

// PrevClose returns the most recent completed session's aggregate, or nil
// when the ticker has no history.
func (c *Client) PrevClose(ctx context.Context, symbol string) (*models.Aggregate, error) {
	symbol = models.NormalizeTicker(symbol)
	var resp aggsResponse
	path := fmt.Sprintf("/v2/aggs/ticker/%s/prev", url.PathEscape(symbol))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("polygon prev %s: %w", symbol, err)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// DailyRange returns the ascending daily aggregates for the inclusive
// date window, adjusted for splits.
func (c *Client) DailyRange(ctx context.Context, symbol string, from, to time.Time) ([]models.Aggregate, error) {
	symbol = models.NormalizeTicker(symbol)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), from.Format("2006-01-02"), to.Format("2006-01-02"))
	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("sort", "asc")
	params.Set("limit", "5000")

	var resp aggsResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, fmt.Errorf("polygon range %s: %w", symbol, err)
	}
	return resp.Results, nil
}

type dividendsResponse struct {
	Results []models.Dividend `json:"results"`
}

// Dividends returns up to limit dividend records for a ticker, most
// recent first.
func (c *Client) Dividends(ctx context.Context, symbol string, limit int) ([]models.Dividend, error) {
	symbol = models.NormalizeTicker(symbol)
	params := url.Values{}
	params.Set("ticker", symbol)
	params.Set("limit", fmt.Sprintf("%d", limit))

	var resp dividendsResponse
	if err := c.get(ctx, "/v3/reference/dividends", params, &resp); err != nil {
		return nil, fmt.Errorf("polygon dividends %s: %w", symbol, err)
	}
	return resp.Results, nil
}

// --- Snapshot / movers ---

type snapshotTicker struct {
	Ticker          string  `json:"ticker"`
	TodaysChangePct float64 `json:"todaysChangePerc"`
	LastTrade       struct {
		Price float64 `json:"p"`
	} `json:"lastTrade"`
	Min struct {
		Open float64 `json:"o"`
	} `json:"min"`
	PrevDay struct {
		Close float64 `json:"c"`
	} `json:"prevDay"`
}

type snapshotListResponse struct {
	Tickers []snapshotTicker `json:"tickers"`
}

type snapshotResponse struct {
	Ticker snapshotTicker `json:"ticker"`
}

// Direction selects which market snapshot list to fetch.
type Direction string

const (
	DirectionGainers    Direction = "gainers"
	DirectionMostActive Direction = "most-active"
)

// Movers returns the market snapshot for the given direction. The last
// trade price falls back to the current minute bar's open when the trade
// feed has no print yet.
func (c *Client) Movers(ctx context.Context, dir Direction) ([]models.Mover, error) {
	cacheKey := "movers:" + string(dir)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]models.Mover), nil
	}

	var resp snapshotListResponse
	path := "/v2/snapshot/locale/us/markets/stocks/" + string(dir)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("polygon movers %s: %w", dir, err)
	}

	movers := make([]models.Mover, 0, len(resp.Tickers))
	for _, t := range resp.Tickers {
		price := t.LastTrade.Price
		if price == 0 {
			price = t.Min.Open
		}
		movers = append(movers, models.Mover{
			Ticker:        t.Ticker,
			Name:          t.Ticker,
			LastPrice:     price,
			ChangePercent: t.TodaysChangePct,
		})
	}

	c.cache.Set(cacheKey, movers)
	return movers, nil
}

// Snapshot returns the full snapshot for a single ticker.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*models.Mover, error) {
	symbol = models.NormalizeTicker(symbol)
	var resp snapshotResponse
	path := "/v2/snapshot/locale/us/markets/stocks/tickers/" + url.PathEscape(symbol)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("polygon snapshot %s: %w", symbol, err)
	}
	return &models.Mover{
		Ticker:        symbol,
		Name:          symbol,
		LastPrice:     resp.Ticker.LastTrade.Price,
		ChangePercent: resp.Ticker.TodaysChangePct,
	}, nil
}

// --- Reference tickers ---

type referenceResponse struct {
	Results []models.TickerMatch `json:"results"`
}

// SearchTickers queries the reference ticker search used for autocomplete.
func (c *Client) SearchTickers(ctx context.Context, query string, limit int) ([]models.TickerMatch, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("active", "true")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var resp referenceResponse
	if err := c.get(ctx, "/v3/reference/tickers", params, &resp); err != nil {
		return nil, fmt.Errorf("polygon ticker search %q: %w", query, err)
	}
	return resp.Results, nil
}

// SectorTop returns the top companies of a sector by market cap, each
// enriched with a snapshot quote. Per-ticker snapshot failures degrade to
// zero price and change rather than failing the whole list.
func (c *Client) SectorTop(ctx context.Context, sector string, top int) ([]models.Mover, error) {
	params := url.Values{}
	params.Set("market", "stocks")
	params.Set("active", "true")
	params.Set("limit", "50")
	params.Set("sector", sector)

	var resp referenceResponse
	if err := c.get(ctx, "/v3/reference/tickers", params, &resp); err != nil {
		return nil, fmt.Errorf("polygon sector %q: %w", sector, err)
	}

	matches := resp.Results
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].MarketCap > matches[j].MarketCap
	})
	if len(matches) > top {
		matches = matches[:top]
	}

	movers := make([]models.Mover, len(matches))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range matches {
		i, m := i, m
		g.Go(func() error {
			entry := models.Mover{Ticker: m.Ticker, Name: m.Name}
			if snap, err := c.Snapshot(gctx, m.Ticker); err == nil {
				entry.LastPrice = snap.LastPrice
				entry.ChangePercent = snap.ChangePercent
			}
			mu.Lock()
			movers[i] = entry
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return movers, err
	}
	return movers, nil
}
