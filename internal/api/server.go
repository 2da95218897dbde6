// Package api is the REST shell over the routing engine and state store
// (§4.7): each handler validates its request, reads the cache with a
// short TTL, delegates to the routing engine or state store on miss, then
// repopulates the cache. Cache coherence is best-effort by design — no
// handler's correctness depends on a cache hit.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/cache"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// orderbookTTL and quoteTTL bound how long a cached response may be
// served before a handler refreshes it from the store/engine.
const (
	orderbookTTL = int64(2)  // seconds
	quoteTTL     = int64(5)  // seconds
	pairsTTL     = int64(10) // seconds
	analyticsTTL = int64(30) // seconds
)

// HealthReporter supplies the indexer-lag figure surfaced on /health.
// cmd/server passes a reporter that always returns zero; the live figure
// is served by cmd/indexer's own /health.
type HealthReporter interface {
	IndexerLagLedgers() int64
}

// Server wires chi routing, CORS, and structured-logging middleware over
// a Handler.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger
}

// Config bundles a Server's dependencies.
type Config struct {
	Store     domain.StateStore
	Routing   domain.RoutingEngine
	Cache     *cache.Store
	Health    HealthReporter
	Analytics AnalyticsProvider
	Log       zerolog.Logger
	Addr      string
}

// New builds a Server with routes and middleware installed but not yet
// listening.
func New(cfg Config) *Server {
	h := &Handler{
		store:     cfg.Store,
		routing:   cfg.Routing,
		cache:     cfg.Cache,
		health:    cfg.Health,
		analytics: cfg.Analytics,
		log:       cfg.Log.With().Str("component", "api").Logger(),
	}

	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes(h)

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes(h *Handler) {
	// /ws/status is a long-lived connection and must not sit behind the
	// request-scoped timeout applied to the REST routes below.
	s.router.Get("/ws/status", h.handleStatusStream)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/health", h.handleHealth)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/pairs", h.handlePairs)
			r.Get("/orderbook/{base}/{counter}", h.handleOrderbook)
			r.Get("/quote/{base}/{counter}", h.handleQuote)
			r.Get("/analytics/{base}/{counter}", h.handleAnalytics)
		})
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// ListenAndServe blocks serving HTTP until the server errors or is shut
// down.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("api server listening")
	return s.http.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
