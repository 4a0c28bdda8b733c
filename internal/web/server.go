// Package web serves the operational HTTP API of serve mode: health, metrics,
// the run ledger and on-demand scans.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tempingest/internal/ingest"
	"github.com/JonMunkholm/tempingest/internal/scheduler"
	"github.com/JonMunkholm/tempingest/internal/web/middleware"
)

// RunLister reads the run ledger.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]ingest.Run, error)
}

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PassRunner starts directory passes.
type PassRunner interface {
	TryRun(ctx context.Context) (ingest.Summary, error)
	Busy() bool
	Last() (scheduler.PassResult, bool)
}

// Deps are the collaborators of the server.
type Deps struct {
	Runs    RunLister
	DB      Pinger
	Runner  PassRunner
	Metrics http.Handler
	APIKeys []string
}

// Server is the HTTP server for serve mode.
type Server struct {
	deps   Deps
	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server with routes and middleware installed.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.deps.APIKeys))

		r.Get("/runs", s.handleListRuns)
		r.Get("/status", s.handleStatus)
		r.Post("/scan", s.handleScan)
	})
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("starting http server", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
