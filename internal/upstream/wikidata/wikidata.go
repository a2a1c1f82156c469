// Package wikidata implements the knowledge-graph discovery client. It
// runs a SPARQL query against the public Wikidata endpoint to find listed
// companies whose industry label contains a free-text fragment.
package wikidata

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/finbrowse/stockcards/internal/upstream"
	"github.com/finbrowse/stockcards/pkg/models"
)

const defaultEndpoint = "https://query.wikidata.org/sparql"

// discoverLimit bounds the raw SPARQL result set before any dedup.
const discoverLimit = 60

// Client queries the Wikidata SPARQL endpoint. No credential is required;
// the endpoint is public and best-effort.
type Client struct {
	endpoint string
	cache    *upstream.Cache
	limiter  *upstream.RateLimiter
}

// New creates a Wikidata client against the public query service.
func New() *Client {
	return &Client{
		endpoint: defaultEndpoint,
		cache:    upstream.NewCache(10 * time.Minute),
		limiter:  upstream.NewRateLimiter(2, time.Second),
	}
}

// SetEndpoint overrides the SPARQL endpoint. Used by tests.
func (c *Client) SetEndpoint(u string) { c.endpoint = u }

// DiscoverByIndustry returns companies whose industry label contains the
// given fragment, case-insensitively. Entities are exchange-listed
// (P414) but may still lack a ticker symbol (P249).
func (c *Client) DiscoverByIndustry(ctx context.Context, industry string) ([]models.Company, error) {
	cacheKey := "industry:" + strings.ToLower(industry)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]models.Company), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("format", "json")
	form.Set("query", industryQuery(industry))

	body, _, err := upstream.DoPostForm(ctx, c.endpoint, form, map[string]string{
		"Accept": "application/sparql-results+json",
	})
	if err != nil {
		return nil, fmt.Errorf("wikidata discover %q: %w", industry, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	companies := parseBindings(data)
	c.cache.Set(cacheKey, companies)
	return companies, nil
}

// industryQuery builds the SPARQL query: public companies (or subclasses)
// with an industry whose English label contains the fragment, listed on
// some exchange, with an optional ticker.
func industryQuery(industry string) string {
	escaped := strings.ReplaceAll(industry, `"`, `\"`)
	return fmt.Sprintf(`
SELECT ?company ?companyLabel ?ticker ?exchangeLabel ?industryLabel WHERE {
  ?company wdt:P31/wdt:P279* wd:Q891723 .
  ?company wdt:P452 ?industry .
  ?industry rdfs:label ?industryLabel .
  FILTER(CONTAINS(LCASE(?industryLabel), LCASE("%s")))
  ?company wdt:P414 ?exchange .
  OPTIONAL { ?company wdt:P249 ?ticker . }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
} LIMIT %d`, escaped, discoverLimit)
}

// parseBindings extracts companies from a SPARQL results document. The
// binding envelope nests every value under {"type":..,"value":..}; gjson
// path lookups keep this from needing a throwaway struct hierarchy.
func parseBindings(data []byte) []models.Company {
	bindings := gjson.GetBytes(data, "results.bindings")
	var companies []models.Company
	bindings.ForEach(func(_, b gjson.Result) bool {
		name := b.Get("companyLabel.value").String()
		if name == "" {
			return true
		}
		companies = append(companies, models.Company{
			Name:     name,
			Ticker:   b.Get("ticker.value").String(),
			Exchange: b.Get("exchangeLabel.value").String(),
			Industry: b.Get("industryLabel.value").String(),
		})
		return true
	})
	return companies
}
