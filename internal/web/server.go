// Package web provides the HTTP server that runs the cleaning pipeline on
// uploaded CSV files and serves the resulting reports and outputs.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/fuelclean/internal/config"
	"github.com/JonMunkholm/fuelclean/internal/pipeline"
	"github.com/JonMunkholm/fuelclean/internal/table"
	webmw "github.com/JonMunkholm/fuelclean/internal/web/middleware"
)

// Runner executes one cleaning run. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, t *table.Table) (*pipeline.Result, error)
}

// Server is the HTTP server for cleaning runs.
type Server struct {
	cfg         *config.Config
	runner      Runner
	priceColumn string
	limiter     *RunLimiter
	runs        *runRegistry
	router      *chi.Mux
	server      *http.Server
}

// NewServer creates a new Server. priceColumn is written quoted in CSV downloads.
func NewServer(cfg *config.Config, runner Runner, priceColumn string) *Server {
	s := &Server{
		cfg:         cfg,
		runner:      runner,
		priceColumn: priceColumn,
		limiter:     NewRunLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWaitTime),
		runs:        newRunRegistry(cfg.Run.Retain),
		router:      chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes. Run creation is bounded by
// RUN_TIMEOUT; every other route by SERVER_REQUEST_TIMEOUT.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		r.Get("/runs/{runID}", s.handleReport)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		r.Post("/runs", s.handleCreateRun)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			r.Get("/runs/{runID}", s.handleGetRun)
			r.Get("/runs/{runID}/cleaned.csv", s.handleCleanedCSV)
			r.Get("/runs/{runID}/anomalies.csv", s.handleAnomaliesCSV)
			r.Get("/runs/{runID}/anomalies.xlsx", s.handleAnomaliesXLSX)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for runs in progress.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if active := s.limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for runs to complete", "active", active)
		if derr := s.limiter.WaitForDrain(ctx); derr != nil {
			slog.Warn("runs did not complete in time", "error", derr)
		}
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
