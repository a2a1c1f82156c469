// Package finnhub implements the market-data reference client: symbol
// search, company profile, and real-time quotes.
//
// Free tier: 60 requests/minute.
// Docs: https://finnhub.io/docs/api
package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/finbrowse/stockcards/internal/upstream"
	"github.com/finbrowse/stockcards/pkg/models"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client is a Finnhub API client. The API key is injected at construction;
// a missing key surfaces as upstream.ErrMissingCredential on first use.
type Client struct {
	apiKey  string
	baseURL string
	cache   *upstream.Cache
	limiter *upstream.RateLimiter
}

// New creates a Finnhub client with the given API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		cache:   upstream.NewCache(1 * time.Minute),
		limiter: upstream.NewRateLimiter(30, time.Minute),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

func (c *Client) checkKey() error {
	if c.apiKey == "" {
		return fmt.Errorf("finnhub: %w", upstream.ErrMissingCredential)
	}
	return nil
}

type searchResponse struct {
	Count  int                  `json:"count"`
	Result []models.SymbolMatch `json:"result"`
}

// Search queries the symbol lookup endpoint with a free-text query and
// returns the ranked matches.
func (c *Client) Search(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}

	cacheKey := "search:" + query
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]models.SymbolMatch), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/search?q=%s&token=%s", c.baseURL, url.QueryEscape(query), c.apiKey)
	var resp searchResponse
	if err := upstream.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("finnhub search %q: %w", query, err)
	}

	c.cache.Set(cacheKey, resp.Result)
	return resp.Result, nil
}

type profileResponse struct {
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
	Industry string `json:"finnhubIndustry"`
	Logo     string `json:"logo"`
	Currency string `json:"currency"`
	WebURL   string `json:"weburl"`
}

// Profile returns the company profile for a ticker. An unknown ticker
// yields an empty (but non-nil) profile, matching upstream behavior.
func (c *Client) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}

	symbol = models.NormalizeTicker(symbol)
	cacheKey := "profile:" + symbol
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*models.Profile), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/stock/profile2?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), c.apiKey)
	var resp profileResponse
	if err := upstream.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("finnhub profile %s: %w", symbol, err)
	}

	profile := &models.Profile{
		Name:     resp.Name,
		Ticker:   resp.Ticker,
		Exchange: resp.Exchange,
		Industry: resp.Industry,
		Logo:     resp.Logo,
		Currency: resp.Currency,
		WebURL:   resp.WebURL,
	}
	c.cache.Set(cacheKey, profile)
	return profile, nil
}

type quoteResponse struct {
	Close         float64  `json:"c"`
	Change        *float64 `json:"d"`
	PercentChange *float64 `json:"dp"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
	PrevClose     float64  `json:"pc"`
	Timestamp     int64    `json:"t"`
}

// Quote returns the real-time quote for a ticker. Finnhub reports all-zero
// fields for unknown symbols; zero prices are mapped to absent so that
// downstream fallback chains do not mistake them for data.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}

	symbol = models.NormalizeTicker(symbol)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), c.apiKey)
	var resp quoteResponse
	if err := upstream.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("finnhub quote %s: %w", symbol, err)
	}

	q := &models.Quote{
		Close:         nonZero(resp.Close),
		Change:        resp.Change,
		PercentChange: resp.PercentChange,
		High:          nonZero(resp.High),
		Low:           nonZero(resp.Low),
		Open:          nonZero(resp.Open),
		PrevClose:     nonZero(resp.PrevClose),
	}
	return q, nil
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
