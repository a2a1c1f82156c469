// Package card assembles per-ticker display cards by fanning out to the
// profile, quote, and price-history upstreams concurrently and merging
// whatever came back. A card never fails hard for a single ticker:
// individual upstream failures degrade the corresponding sub-object.
package card

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finbrowse/stockcards/pkg/models"
)

const (
	// rangeDays is the calendar window for the daily candle history.
	rangeDays = 30
	// dividendLimit caps the dividend history query.
	dividendLimit = 3
)

// ErrEmptySymbol is returned for blank input before any upstream call.
var ErrEmptySymbol = fmt.Errorf("empty symbol")

// ProfileSource supplies company reference data and real-time quotes.
type ProfileSource interface {
	Profile(ctx context.Context, symbol string) (*models.Profile, error)
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// HistorySource supplies aggregates and dividend history.
type HistorySource interface {
	PrevClose(ctx context.Context, symbol string) (*models.Aggregate, error)
	DailyRange(ctx context.Context, symbol string, from, to time.Time) ([]models.Aggregate, error)
	Dividends(ctx context.Context, symbol string, limit int) ([]models.Dividend, error)
}

// Builder builds cards from the configured upstream sources. It holds no
// mutable state; each build is a pure function of the ticker and the
// upstream responses.
type Builder struct {
	profiles ProfileSource
	history  HistorySource
	now      func() time.Time
}

// New creates a Builder over the given sources.
func New(profiles ProfileSource, history HistorySource) *Builder {
	return &Builder{profiles: profiles, history: history, now: time.Now}
}

// Build assembles a card for one ticker. The profile, quote,
// previous-session, and history-group calls run concurrently; a failed
// sub-call leaves its sub-object empty and is logged, never returned.
func (b *Builder) Build(ctx context.Context, symbol string) (*models.Card, error) {
	symbol = models.NormalizeTicker(symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	c := &models.Card{
		Symbol:    symbol,
		Candles:   []models.Aggregate{},
		Dividends: []models.Dividend{},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := b.profiles.Profile(gctx, symbol)
		if err != nil {
			log.Printf("card %s: profile: %v", symbol, err)
			return nil
		}
		c.Profile = profile
		return nil
	})

	g.Go(func() error {
		quote, err := b.profiles.Quote(gctx, symbol)
		if err != nil {
			log.Printf("card %s: quote: %v", symbol, err)
			return nil
		}
		c.Quote = quote
		return nil
	})

	g.Go(func() error {
		prev, err := b.history.PrevClose(gctx, symbol)
		if err != nil {
			log.Printf("card %s: prev: %v", symbol, err)
			return nil
		}
		c.Prev = prev
		return nil
	})

	// History group: daily range and dividends share a goroutine.
	g.Go(func() error {
		to := b.now()
		from := to.AddDate(0, 0, -rangeDays)
		candles, err := b.history.DailyRange(gctx, symbol, from, to)
		if err != nil {
			log.Printf("card %s: range: %v", symbol, err)
		} else if candles != nil {
			c.Candles = candles
		}

		dividends, err := b.history.Dividends(gctx, symbol, dividendLimit)
		if err != nil {
			log.Printf("card %s: dividends: %v", symbol, err)
		} else if dividends != nil {
			c.Dividends = dividends
		}
		return nil
	})

	// The goroutines never return errors; Wait only observes ctx cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.Display = Derive(c)
	c.Displayable = Displayable(c)
	return c, nil
}

// BuildAll builds cards for every candidate concurrently. Tickers whose
// build fails or whose card carries no usable market signal are dropped
// from the result, never surfaced as errors. Input order is preserved.
func (b *Builder) BuildAll(ctx context.Context, companies []models.Company) []models.ResolvedCard {
	built := make([]*models.Card, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	for i, company := range companies {
		i, company := i, company
		g.Go(func() error {
			card, err := b.Build(gctx, company.Ticker)
			if err != nil {
				log.Printf("card %s: dropped: %v", company.Ticker, err)
				return nil
			}
			built[i] = card
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines swallow their own errors

	out := make([]models.ResolvedCard, 0, len(companies))
	for i, card := range built {
		if card == nil || !card.Displayable {
			continue
		}
		out = append(out, models.ResolvedCard{Meta: companies[i], Card: card})
	}
	return out
}
