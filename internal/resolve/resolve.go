// Package resolve maps a free-text query (ticker, company name, or
// industry) to a bounded, deduplicated list of ticker-bearing company
// candidates by composing the symbol-search and knowledge-graph providers.
package resolve

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/finbrowse/stockcards/pkg/models"
)

const (
	// maxCandidates caps every resolved set.
	maxCandidates = 8
	// backfillThreshold triggers ticker backfill on the industry path when
	// fewer ticker-bearing candidates than this were discovered.
	backfillThreshold = 6
	// backfillAttempts bounds the sequential name-search backfill loop.
	backfillAttempts = 10
)

// ErrEmptyQuery is returned for blank input before any upstream call.
var ErrEmptyQuery = fmt.Errorf("empty query")

// UpstreamError wraps a failed primary provider call with the provider
// name so the caller can surface a clear "search failed" condition.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s search failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SymbolSearcher is the market-data symbol search dependency.
type SymbolSearcher interface {
	Search(ctx context.Context, query string) ([]models.SymbolMatch, error)
}

// IndustrySearcher is the knowledge-graph discovery dependency.
type IndustrySearcher interface {
	DiscoverByIndustry(ctx context.Context, industry string) ([]models.Company, error)
}

// Resolver resolves raw queries into candidate sets. It holds no mutable
// state; every call is a pure function of its inputs and upstream replies.
type Resolver struct {
	symbols    SymbolSearcher
	industries IndustrySearcher
}

// New creates a Resolver over the given providers.
func New(symbols SymbolSearcher, industries IndustrySearcher) *Resolver {
	return &Resolver{symbols: symbols, industries: industries}
}

var (
	symbolRe = regexp.MustCompile(`^[A-Za-z]{1,5}$`)
	nameRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z .,&-]*$`)
)

// Classify buckets a query into exactly one kind. Precedence: a short
// all-letter token reads as a ticker symbol; corporate-name shapes
// (letters with space, "&", ".", "," or "-" separators, longer than 3
// characters) read as a company name; everything else, including long
// bare words like "technology", falls through to industry discovery.
func Classify(query string) models.QueryKind {
	if symbolRe.MatchString(query) {
		return models.KindSymbol
	}
	if len(query) > 3 && nameRe.MatchString(query) && strings.ContainsAny(query, " .,&-") {
		return models.KindCompanyName
	}
	return models.KindIndustry
}

// Resolve classifies the query, dispatches to the matching provider
// strategy, and returns up to 8 unique ticker-bearing candidates. A
// successful provider call that finds nothing yields Found=false, not an
// error; only a failed primary call returns an *UpstreamError.
func (r *Resolver) Resolve(ctx context.Context, query string) (*models.ResolvedSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	kind := Classify(query)

	var (
		candidates []models.Company
		err        error
	)
	switch kind {
	case models.KindSymbol:
		candidates, err = r.resolveSymbol(ctx, query)
	case models.KindCompanyName:
		candidates, err = r.resolveCompanyName(ctx, query)
	default:
		candidates, err = r.resolveIndustry(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	candidates = dedupeByTicker(candidates)

	set := &models.ResolvedSet{
		Query:     query,
		Kind:      kind,
		Found:     len(candidates) > 0,
		Companies: candidates,
	}
	if !set.Found {
		set.Companies = []models.Company{}
		set.Suggestion = suggestionFor(kind)
	}
	return set, nil
}

// resolveSymbol searches the market-data provider for the literal query
// and orders exact symbol matches ahead of close ones.
func (r *Resolver) resolveSymbol(ctx context.Context, query string) ([]models.Company, error) {
	matches, err := r.symbols.Search(ctx, query)
	if err != nil {
		return nil, &UpstreamError{Provider: "finnhub", Err: err}
	}

	var exact, near []models.Company
	lower := strings.ToLower(query)
	for _, m := range matches {
		if m.Symbol == "" {
			continue
		}
		c := models.Company{Name: m.Description, Ticker: m.Symbol}
		switch {
		case strings.EqualFold(m.Symbol, query):
			exact = append(exact, c)
		case strings.Contains(strings.ToLower(m.Symbol), lower) ||
			strings.Contains(strings.ToLower(m.Description), lower):
			near = append(near, c)
		}
	}
	return cap8(append(exact, near...)), nil
}

// resolveCompanyName searches the market-data provider and keeps results
// whose description or symbol contains the query.
func (r *Resolver) resolveCompanyName(ctx context.Context, query string) ([]models.Company, error) {
	matches, err := r.symbols.Search(ctx, query)
	if err != nil {
		return nil, &UpstreamError{Provider: "finnhub", Err: err}
	}

	var out []models.Company
	lower := strings.ToLower(query)
	for _, m := range matches {
		if m.Symbol == "" {
			continue
		}
		if strings.Contains(strings.ToLower(m.Description), lower) ||
			strings.Contains(strings.ToLower(m.Symbol), lower) {
			out = append(out, models.Company{Name: m.Description, Ticker: m.Symbol})
		}
	}
	return cap8(out), nil
}

// resolveIndustry discovers companies through the knowledge graph, which
// frequently returns entities without a listed ticker, then opportunistically
// backfills tickers by name when too few candidates carry one.
func (r *Resolver) resolveIndustry(ctx context.Context, query string) ([]models.Company, error) {
	discovered, err := r.industries.DiscoverByIndustry(ctx, query)
	if err != nil {
		return nil, &UpstreamError{Provider: "wikidata", Err: err}
	}

	discovered = dedupePreferTicker(discovered)

	var withTicker, tickerless []models.Company
	for _, c := range discovered {
		if c.Ticker != "" {
			if len(withTicker) < maxCandidates {
				withTicker = append(withTicker, c)
			}
		} else {
			tickerless = append(tickerless, c)
		}
	}

	if len(withTicker) < backfillThreshold {
		withTicker = r.backfill(ctx, withTicker, tickerless)
	}
	return withTicker, nil
}

// backfill resolves tickers for up to backfillAttempts ticker-less
// candidates via sequential name searches, stopping early once the set is
// full. Individual failures are logged and skipped, never propagated.
func (r *Resolver) backfill(ctx context.Context, have, tickerless []models.Company) []models.Company {
	if len(tickerless) > backfillAttempts {
		tickerless = tickerless[:backfillAttempts]
	}

	for _, c := range tickerless {
		if len(have) >= maxCandidates {
			break
		}
		matches, err := r.symbols.Search(ctx, c.Name)
		if err != nil {
			log.Printf("resolve: backfill %q: %v", c.Name, err)
			continue
		}
		// First match in provider-return order wins; no scoring.
		for _, m := range matches {
			if m.Symbol == "" {
				continue
			}
			if strings.Contains(strings.ToLower(m.Description), strings.ToLower(c.Name)) {
				filled := c
				filled.Ticker = m.Symbol
				have = append(have, filled)
				break
			}
		}
	}
	return have
}

// dedupePreferTicker collapses raw discovery results by ticker-or-name
// identity, replacing a ticker-less entry when a ticker-bearing duplicate
// appears. First-seen order is preserved.
func dedupePreferTicker(companies []models.Company) []models.Company {
	index := make(map[string]int, len(companies))
	var out []models.Company
	for _, c := range companies {
		key := strings.ToLower(c.Key())
		if i, ok := index[key]; ok {
			if c.Ticker != "" && out[i].Ticker == "" {
				out[i] = c
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	return out
}

// dedupeByTicker removes candidates whose uppercased ticker was already
// seen, preserving first-seen order and the 8-entry cap.
func dedupeByTicker(companies []models.Company) []models.Company {
	seen := make(map[string]bool, len(companies))
	var out []models.Company
	for _, c := range companies {
		if c.Ticker == "" {
			continue
		}
		key := strings.ToUpper(c.Ticker)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

func cap8(companies []models.Company) []models.Company {
	if len(companies) > maxCandidates {
		return companies[:maxCandidates]
	}
	return companies
}

// suggestionFor returns the kind-appropriate hint rendered when a query
// resolves to nothing.
func suggestionFor(kind models.QueryKind) string {
	switch kind {
	case models.KindSymbol:
		return "Try a different symbol like AAPL, MSFT, or GOOGL."
	case models.KindCompanyName:
		return "Try a different company name like Apple Inc. or Berkshire Hathaway."
	default:
		return "Try a different industry like technology, healthcare, or finance."
	}
}
