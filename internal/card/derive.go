package card

import (
	"math"

	"github.com/finbrowse/stockcards/pkg/models"
)

// Derive computes the display fields for a merged card. Each field walks
// a fallback chain across the sub-objects; the first present value wins
// and a fully exhausted chain leaves the field nil ("unavailable").
func Derive(c *models.Card) models.Display {
	d := models.Display{Direction: "flat"}

	d.Price = currentPrice(c)
	d.PrevClose = previousClose(c)
	d.ChangePct = percentChange(c, d.Price, d.PrevClose)

	if d.ChangePct != nil {
		if *d.ChangePct < 0 {
			d.Direction = "down"
		} else {
			d.Direction = "up"
		}
	}
	return d
}

// currentPrice: quote close, else last candle close, else prev close.
func currentPrice(c *models.Card) *float64 {
	if c.Quote != nil && c.Quote.Close != nil {
		return c.Quote.Close
	}
	if n := len(c.Candles); n > 0 {
		v := c.Candles[n-1].Close
		return &v
	}
	if c.Prev != nil {
		v := c.Prev.Close
		return &v
	}
	return nil
}

// previousClose: prev-aggregate close, else the quote's previous-close
// field, else the second-to-last candle close.
func previousClose(c *models.Card) *float64 {
	if c.Prev != nil {
		v := c.Prev.Close
		return &v
	}
	if c.Quote != nil && c.Quote.PrevClose != nil {
		return c.Quote.PrevClose
	}
	if n := len(c.Candles); n > 1 {
		v := c.Candles[n-2].Close
		return &v
	}
	return nil
}

// percentChange: the quote's native field when present, else computed
// from the already-derived price and previous close.
func percentChange(c *models.Card, price, prev *float64) *float64 {
	if c.Quote != nil && c.Quote.PercentChange != nil {
		v := round2(*c.Quote.PercentChange)
		return &v
	}
	if price != nil && prev != nil && *prev != 0 {
		v := round2((*price - *prev) / *prev * 100)
		return &v
	}
	return nil
}

// Displayable reports whether the card carries at least one usable market
// signal: a quote close, a previous close, or any candle.
func Displayable(c *models.Card) bool {
	if c.Quote != nil && (c.Quote.Close != nil || c.Quote.PrevClose != nil) {
		return true
	}
	if c.Prev != nil {
		return true
	}
	return len(c.Candles) > 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
