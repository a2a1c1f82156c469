package polygon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finbrowse/stockcards/internal/upstream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("test-key")
	c.SetBaseURL(srv.URL)
	return c
}

func TestPrevClose(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/ticker/AAPL/prev" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("apiKey"); got != "test-key" {
			t.Errorf("apiKey = %q", got)
		}
		w.Write([]byte(`{
			"ticker": "AAPL",
			"resultsCount": 1,
			"results": [{"o": 148, "h": 151, "l": 147.5, "c": 150, "v": 52000000, "t": 1756400000000}]
		}`))
	})

	agg, err := c.PrevClose(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("PrevClose: %v", err)
	}
	if agg == nil || agg.Close != 150 || agg.Volume != 52000000 {
		t.Fatalf("agg = %+v", agg)
	}
}

func TestPrevCloseNoHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker": "ZZZZZ", "resultsCount": 0, "results": []}`))
	})

	agg, err := c.PrevClose(context.Background(), "ZZZZZ")
	if err != nil {
		t.Fatalf("PrevClose: %v", err)
	}
	if agg != nil {
		t.Errorf("agg = %+v, want nil for empty history", agg)
	}
}

func TestDailyRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/ticker/MSFT/range/1/day/2026-07-31/2026-08-30" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("adjusted") != "true" || q.Get("sort") != "asc" || q.Get("limit") != "5000" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{
			"resultsCount": 2,
			"results": [
				{"o": 400, "c": 405, "t": 1756300000000},
				{"o": 405, "c": 410, "t": 1756400000000}
			]
		}`))
	})

	from := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	candles, err := c.DailyRange(context.Background(), "msft", from, to)
	if err != nil {
		t.Fatalf("DailyRange: %v", err)
	}
	if len(candles) != 2 || candles[1].Close != 410 {
		t.Fatalf("candles = %+v", candles)
	}
}

func TestDividends(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/reference/dividends" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ticker") != "AAPL" || q.Get("limit") != "3" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{
			"results": [
				{"cash_amount": 0.24, "ex_dividend_date": "2026-08-08", "pay_date": "2026-08-14", "frequency": 4, "dividend_type": "CD"}
			]
		}`))
	})

	divs, err := c.Dividends(context.Background(), "AAPL", 3)
	if err != nil {
		t.Fatalf("Dividends: %v", err)
	}
	if len(divs) != 1 || divs[0].CashAmount != 0.24 || divs[0].Frequency != 4 {
		t.Fatalf("divs = %+v", divs)
	}
}

func TestMovers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/snapshot/locale/us/markets/stocks/gainers" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"tickers": [
				{"ticker": "UPCO", "todaysChangePerc": 12.5, "lastTrade": {"p": 42.1}},
				{"ticker": "NOTR", "todaysChangePerc": 8.2, "lastTrade": {"p": 0}, "min": {"o": 17.3}}
			]
		}`))
	})

	movers, err := c.Movers(context.Background(), DirectionGainers)
	if err != nil {
		t.Fatalf("Movers: %v", err)
	}
	if len(movers) != 2 {
		t.Fatalf("movers = %+v", movers)
	}
	if movers[0].Ticker != "UPCO" || movers[0].LastPrice != 42.1 || movers[0].ChangePercent != 12.5 {
		t.Errorf("movers[0] = %+v", movers[0])
	}
	// No trade print yet: the minute bar open stands in.
	if movers[1].LastPrice != 17.3 {
		t.Errorf("movers[1].LastPrice = %v, want minute-bar fallback 17.3", movers[1].LastPrice)
	}
}

func TestMoversCaches(t *testing.T) {
	hits := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"tickers": []}`))
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Movers(context.Background(), DirectionMostActive); err != nil {
			t.Fatalf("Movers %d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (cached)", hits)
	}
}

func TestMissingKey(t *testing.T) {
	c := New("")
	_, err := c.PrevClose(context.Background(), "AAPL")
	if !errors.Is(err, upstream.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestSearchTickers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/reference/tickers" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("search") != "app" || q.Get("active") != "true" || q.Get("limit") != "8" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{
			"results": [
				{"ticker": "AAPL", "name": "Apple Inc.", "market_cap": 3000000000000},
				{"ticker": "APP", "name": "Applovin Corp", "market_cap": 100000000000}
			]
		}`))
	})

	matches, err := c.SearchTickers(context.Background(), "app", 8)
	if err != nil {
		t.Fatalf("SearchTickers: %v", err)
	}
	if len(matches) != 2 || matches[0].Ticker != "AAPL" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestSectorTop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/reference/tickers":
			if got := r.URL.Query().Get("sector"); got != "technology" {
				t.Errorf("sector = %q", got)
			}
			// Deliberately out of market-cap order.
			w.Write([]byte(`{
				"results": [
					{"ticker": "SMALL", "name": "Small Tech", "market_cap": 1000},
					{"ticker": "BIG", "name": "Big Tech", "market_cap": 9000},
					{"ticker": "MID", "name": "Mid Tech", "market_cap": 5000}
				]
			}`))
		case "/v2/snapshot/locale/us/markets/stocks/tickers/BIG":
			w.Write([]byte(`{"ticker": {"ticker": "BIG", "todaysChangePerc": 1.5, "lastTrade": {"p": 900}}}`))
		case "/v2/snapshot/locale/us/markets/stocks/tickers/MID":
			// Snapshot failure degrades this entry, not the whole list.
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	movers, err := c.SectorTop(context.Background(), "technology", 2)
	if err != nil {
		t.Fatalf("SectorTop: %v", err)
	}
	if len(movers) != 2 {
		t.Fatalf("movers = %+v", movers)
	}
	if movers[0].Ticker != "BIG" || movers[1].Ticker != "MID" {
		t.Errorf("order = %q, %q, want market-cap descending", movers[0].Ticker, movers[1].Ticker)
	}
	if movers[0].LastPrice != 900 || movers[0].ChangePercent != 1.5 {
		t.Errorf("movers[0] = %+v", movers[0])
	}
	if movers[1].LastPrice != 0 {
		t.Errorf("movers[1].LastPrice = %v, want degraded zero", movers[1].LastPrice)
	}
	if movers[1].Name != "Mid Tech" {
		t.Errorf("movers[1].Name = %q, reference metadata lost", movers[1].Name)
	}
}
