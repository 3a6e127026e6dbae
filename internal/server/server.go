package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/opsched/internal/config"
	"github.com/me/opsched/internal/opsched"
)

// Server is the grid node's admin/demo HTTP API: submit operations,
// inspect scheduler health and live metrics.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	sched     *opsched.Scheduler
}

// Option configures optional Server dependencies.
type Option func(*Server)

// New creates a new Server with all routes registered. sched must not be
// nil; a node with no scheduler has nothing useful to serve.
func New(cfg config.Config, sched *opsched.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		sched:     sched,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger, s.sched))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/operations", s.handleSubmitOperation)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/metrics/dump", s.handleMetricsDump)
		r.Get("/sse/metrics", s.handleSSEMetrics)
	})
}
