package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"

	"PortfolioLedger/internal/core"
	"PortfolioLedger/internal/observability"
	"PortfolioLedger/internal/query"
)

// HTTPConfig holds the HTTP API dependencies.
type HTTPConfig struct {
	Addr    string
	Engine  *core.Engine
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// HTTPServer serves the JSON API. chi carries the middleware stack and the
// probes; the /v1 API is routed by a grpc-gateway runtime mux.
type HTTPServer struct {
	router  chi.Router
	api     *runtime.ServeMux
	server  *http.Server
	engine  *core.Engine
	reader  *query.QueryService
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

// NewHTTPServer builds the router. It fails only if a route pattern is
// malformed.
func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	s := &HTTPServer{
		router: chi.NewRouter(),
		api: runtime.NewServeMux(
			runtime.WithRoutingErrorHandler(routingErrorHandler),
		),
		engine:  cfg.Engine,
		reader:  cfg.Engine.Reader(),
		health:  cfg.Health,
		metrics: cfg.Metrics,
		log:     cfg.Logger.With().Str("component", "http").Logger(),
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler exposes the full handler chain, e.g. for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

func (s *HTTPServer) setupRoutes() error {
	if s.health != nil {
		s.router.Get("/healthz", s.health.LivenessHandler)
		s.router.Get("/readyz", s.health.ReadinessHandler)
	}

	routes := []struct {
		method, pattern string
		h               apiHandler
	}{
		{"POST", "/v1/owners", s.handleCreateOwner},
		{"GET", "/v1/owners", s.handleListOwners},
		{"GET", "/v1/owners/{owner}", s.handleGetOwner},

		{"POST", "/v1/owners/{owner}/deposits", s.handleDeposit},
		{"POST", "/v1/owners/{owner}/withdrawals", s.handleWithdraw},
		{"POST", "/v1/owners/{owner}/buys", s.handleBuy},
		{"POST", "/v1/owners/{owner}/sells", s.handleSell},
		{"POST", "/v1/owners/{owner}/deposits-in-kind", s.handleDepositInKind},

		{"GET", "/v1/owners/{owner}/cash", s.handleGetCash},
		{"GET", "/v1/owners/{owner}/cash/eod", s.handleGetEODCash},
		{"GET", "/v1/owners/{owner}/cash-movements", s.handleCashMovements},
		{"GET", "/v1/owners/{owner}/transactions", s.handleTransactions},
		{"GET", "/v1/owners/{owner}/summary/eod", s.handleEODSummary},

		{"GET", "/v1/owners/{owner}/positions", s.handleListPositions},
		{"GET", "/v1/owners/{owner}/positions/{symbol}", s.handleGetPosition},
		{"GET", "/v1/owners/{owner}/positions/{symbol}/eod", s.handleGetEODPosition},

		{"GET", "/v1/owners/{owner}/watchlist", s.handleWatchlist},
		{"GET", "/v1/owners/{owner}/watchlist/{symbol}", s.handleIsWatching},
		{"PUT", "/v1/owners/{owner}/watchlist/{symbol}", s.handleStartWatching},
		{"DELETE", "/v1/owners/{owner}/watchlist/{symbol}", s.handleStopWatching},

		{"POST", "/v1/prices", s.handleRecordPrice},
		{"GET", "/v1/symbols", s.handleListSymbols},
		{"DELETE", "/v1/symbols/{symbol}", s.handleDeleteSymbol},
		{"GET", "/v1/symbols/{symbol}/prices", s.handleListPrices},
		{"GET", "/v1/symbols/{symbol}/prices/latest", s.handleLatestPrice},
		{"GET", "/v1/symbols/{symbol}/prices/eod", s.handleEODPrice},
	}

	for _, rt := range routes {
		if err := s.api.HandlePath(rt.method, rt.pattern, s.instrument(rt.pattern, rt.h)); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	s.router.Mount("/v1", s.api)
	return nil
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loggingMiddleware logs HTTP requests
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
