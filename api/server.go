// Package api provides the HTTP REST API server for stockcards.
//
// It exposes the company-search and card-fetch operations consumed by the
// browser frontend, plus the market-overview endpoints (movers, sector
// top, ticker autocomplete).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/finbrowse/stockcards/internal/card"
	"github.com/finbrowse/stockcards/internal/config"
	"github.com/finbrowse/stockcards/internal/resolve"
	"github.com/finbrowse/stockcards/internal/upstream/finnhub"
	"github.com/finbrowse/stockcards/internal/upstream/polygon"
	"github.com/finbrowse/stockcards/internal/upstream/wikidata"
	"github.com/finbrowse/stockcards/pkg/models"
	"github.com/finbrowse/stockcards/web"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	resolver *resolve.Resolver
	cards    *card.Builder
	market   *polygon.Client
}

// NewServer creates a configured API server with all routes and middleware.
// Provider credentials come from cfg; missing keys are not fatal here and
// surface as upstream errors when the corresponding provider is first used.
func NewServer(cfg *config.Config) *Server {
	fh := finnhub.New(cfg.Providers.Finnhub.APIKey)
	poly := polygon.New(cfg.Providers.Polygon.APIKey)
	wd := wikidata.New()

	srv := &Server{
		cfg:      cfg,
		resolver: resolve.New(fh, wd),
		cards:    card.New(fh, poly),
		market:   poly,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Query resolution and cards
		r.Get("/search", s.handleSearch)
		r.Get("/card/{symbol}", s.handleCard)
		r.Get("/cards", s.handleCards)

		// Market overview
		r.Get("/market/movers", s.handleMovers)
		r.Get("/market/sector/{sector}", s.handleSector)

		// Ticker autocomplete
		r.Get("/search/tickers", s.handleSearchTickers)
	})

	// Embedded browser frontend.
	r.Handle("/*", http.FileServer(http.FS(web.DistFS())))

	return r
}

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CardsResponse is the payload for GET /api/v1/cards.
type CardsResponse struct {
	Query      string                `json:"query"`
	Kind       models.QueryKind      `json:"kind"`
	Found      bool                  `json:"found"`
	Suggestion string                `json:"suggestion,omitempty"`
	Cards      []models.ResolvedCard `json:"cards"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": "dev",
		},
	})
}

// handleSearch resolves a free-text query into candidate companies.
// An empty result is a success with found=false and a suggestion, not an
// error; only a failed primary provider call yields a 502.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	// Generous deadline: the industry path may run up to 10 sequential
	// backfill searches.
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	set, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    set,
	})
}

// handleCard builds a single card. A card with no usable market signal is
// still returned, flagged displayable=false, so the frontend can decide.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	c, err := s.cards.Build(ctx, symbol)
	if err != nil {
		if errors.Is(err, card.ErrEmptySymbol) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    c,
	})
}

// handleCards resolves a query and fans out card builds for every
// candidate. Per-ticker failures and undisplayable cards are dropped.
func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()

	set, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	resp := CardsResponse{
		Query:      set.Query,
		Kind:       set.Kind,
		Found:      set.Found,
		Suggestion: set.Suggestion,
		Cards:      []models.ResolvedCard{},
	}
	if set.Found {
		resp.Cards = s.cards.BuildAll(ctx, set.Companies)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    resp,
	})
}

// handleMovers returns the top market movers. The most-active feed is
// best-effort and degrades to an empty list; the gainers feed does not.
func (s *Server) handleMovers(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "gainers"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var (
		movers []models.Mover
		err    error
	)
	switch direction {
	case "gainers":
		movers, err = s.market.Movers(ctx, polygon.DirectionGainers)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	case "active", "most-active":
		movers, err = s.market.Movers(ctx, polygon.DirectionMostActive)
		if err != nil {
			log.Printf("movers: most-active: %v", err)
			movers = nil
		}
	default:
		writeError(w, http.StatusBadRequest, "direction must be gainers or active")
		return
	}

	if len(movers) > 6 {
		movers = movers[:6]
	}
	if movers == nil {
		movers = []models.Mover{}
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    movers,
	})
}

// handleSector returns a sector's top companies by market cap with
// snapshot quotes.
func (s *Server) handleSector(w http.ResponseWriter, r *http.Request) {
	sector := chi.URLParam(r, "sector")
	if sector == "" {
		writeError(w, http.StatusBadRequest, "sector is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	movers, err := s.market.SectorTop(ctx, sector, 6)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    movers,
	})
}

// handleSearchTickers is the reference-ticker autocomplete.
func (s *Server) handleSearchTickers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data:    []models.TickerMatch{},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	matches, err := s.market.SearchTickers(ctx, q, 8)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if matches == nil {
		matches = []models.TickerMatch{}
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    matches,
	})
}

// ============================================================
// Helpers
// ============================================================

// writeResolveError maps resolver failures: validation errors are the
// caller's fault, a failed primary provider call is a bad gateway with
// the provider named in the message.
func writeResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, resolve.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var ue *resolve.UpstreamError
	if errors.As(err, &ue) {
		writeError(w, http.StatusBadGateway, ue.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
