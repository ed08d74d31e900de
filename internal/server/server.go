package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/atomsched/internal/config"
	"github.com/example/atomsched/internal/scheduler"
	"github.com/example/atomsched/internal/store"
)

// Server is the atomsched REST API server: a thin HTTP front-end over a
// scheduler.Scheduler, grounded on the teacher's chi-router-plus-
// functional-options Server shape.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	sched     *scheduler.Scheduler
	audit     store.Store // optional; nil disables audit logging
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithAuditStore attaches a store.Store that every accepted task
// submission is appended to. The server does not record terminal
// transitions in it; Store.RecordCompletion is never called from here.
func WithAuditStore(st store.Store) Option {
	return func(s *Server) {
		s.audit = st
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, sched *scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
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

// StartScheduler begins the scheduler's dispatch loop in the background.
func (s *Server) StartScheduler(ctx context.Context) {
	go func() {
		if err := s.sched.Start(ctx); err != nil {
			s.logger.Error("scheduler failed to start", "error", err)
		}
	}()
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.handleSubmitTask)
			r.Post("/batch", s.handleSubmitBatch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Get("/wait", s.handleWaitTask)
				r.Post("/cancel", s.handleCancelTask)
			})
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/", s.handleLoadModel)
			r.Get("/factories", s.handleListFactories)
			r.Delete("/{id}", s.handleUnloadModel)
		})
	})

	if s.config.EnableProfiling {
		r.Route("/debug/pprof", func(r chi.Router) {
			r.Get("/", pprof.Index)
			r.Get("/cmdline", pprof.Cmdline)
			r.Get("/profile", pprof.Profile)
			r.Get("/symbol", pprof.Symbol)
			r.Get("/trace", pprof.Trace)
			r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
				pprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
			})
		})
	}
}
