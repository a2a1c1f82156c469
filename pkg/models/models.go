// Package models defines the shared data types exchanged between the
// resolver, the card builder, the upstream clients, and the HTTP API.
package models

import "strings"

// QueryKind classifies a raw search query. Classification is total:
// every input maps to exactly one kind.
type QueryKind string

const (
	KindSymbol      QueryKind = "symbol"
	KindCompanyName QueryKind = "companyName"
	KindIndustry    QueryKind = "industry"
)

// Company is a candidate produced by query resolution. Ticker, Exchange
// and Industry may be empty depending on which provider supplied it.
type Company struct {
	Name     string `json:"name"`
	Ticker   string `json:"ticker,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// Key returns the deduplication identity for a company: the uppercased
// ticker when present, otherwise the lowercased name.
func (c Company) Key() string {
	if c.Ticker != "" {
		return strings.ToUpper(c.Ticker)
	}
	return strings.ToLower(c.Name)
}

// ResolvedSet is the ordered, deduplicated outcome of resolving a query.
// When Found is false the set is empty and Suggestion carries a
// kind-appropriate hint for the presentation layer.
type ResolvedSet struct {
	Query      string    `json:"query"`
	Kind       QueryKind `json:"kind"`
	Found      bool      `json:"found"`
	Companies  []Company `json:"companies"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// SymbolMatch is one entry from the market-data symbol search endpoint.
type SymbolMatch struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// Profile holds the company reference data returned by the fundamentals
// provider. All fields are best-effort.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Industry string `json:"finnhubIndustry,omitempty"`
	Logo     string `json:"logo,omitempty"`
	Currency string `json:"currency,omitempty"`
	WebURL   string `json:"weburl,omitempty"`
}

// Quote is a real-time quote. Fields are pointers because any of them may
// be absent upstream; a nil field means "no data", never "zero".
type Quote struct {
	Close         *float64 `json:"c,omitempty"`
	Change        *float64 `json:"d,omitempty"`
	PercentChange *float64 `json:"dp,omitempty"`
	High          *float64 `json:"h,omitempty"`
	Low           *float64 `json:"l,omitempty"`
	Open          *float64 `json:"o,omitempty"`
	PrevClose     *float64 `json:"pc,omitempty"`
}

// Empty reports whether the quote carries no data at all.
func (q *Quote) Empty() bool {
	if q == nil {
		return true
	}
	return q.Close == nil && q.PercentChange == nil && q.PrevClose == nil &&
		q.Open == nil && q.High == nil && q.Low == nil
}

// Aggregate is one completed session's OHLCV summary. JSON keys follow the
// aggregate provider's wire format so candles pass through to the
// presentation layer unchanged.
type Aggregate struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"`
}

// Dividend is one dividend record.
type Dividend struct {
	CashAmount  float64 `json:"cash_amount"`
	ExDate      string  `json:"ex_dividend_date,omitempty"`
	PayDate     string  `json:"pay_date,omitempty"`
	Frequency   int     `json:"frequency,omitempty"`
	DividendTyp string  `json:"dividend_type,omitempty"`
}

// Card is the merged per-ticker record assembled from the profile, quote
// and history upstreams. Any sub-object may be partially or fully empty;
// consumers must rely on Display for derived fields.
type Card struct {
	Symbol    string      `json:"symbol"`
	Profile   *Profile    `json:"profile,omitempty"`
	Quote     *Quote      `json:"quote,omitempty"`
	Prev      *Aggregate  `json:"prev,omitempty"`
	Candles   []Aggregate `json:"candles"`
	Dividends []Dividend  `json:"dividends"`

	Display     Display `json:"display"`
	Displayable bool    `json:"displayable"`
}

// Display holds the derived, render-ready fields for a card. Nil means
// "unavailable". Percentages are rounded to two decimals.
type Display struct {
	Price     *float64 `json:"price,omitempty"`
	PrevClose *float64 `json:"prevClose,omitempty"`
	ChangePct *float64 `json:"changePct,omitempty"`
	Direction string   `json:"direction"` // "up", "down", or "flat"
}

// ResolvedCard pairs a resolved company with its card, preserving the
// resolver-supplied metadata alongside the fetched data.
type ResolvedCard struct {
	Meta Company `json:"meta"`
	Card *Card   `json:"data"`
}

// Mover is one entry from the market snapshot (gainers / most active).
type Mover struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	LastPrice     float64 `json:"lastPrice"`
	ChangePercent float64 `json:"changePercent"`
}

// TickerMatch is one entry from the reference ticker search.
type TickerMatch struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"market_cap,omitempty"`
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
