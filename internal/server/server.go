// Package server implements the operator HTTP API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/store"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// StatusSource reports the state of the batch dispatcher.
type StatusSource interface {
	Status() model.DispatcherStatus
}

// Server is the operator REST API.
type Server struct {
	router      chi.Router
	logger      *slog.Logger
	info        model.ServerInfo
	startTime   time.Time
	hub         *hub.Hub
	dispatcher  StatusSource
	store       store.Store // nil when history is disabled
	sseInterval time.Duration
	maxTicks    int
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore enables the batch and simulation history endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithSSEInterval sets how often /sse/status polls the dispatcher.
func WithSSEInterval(d time.Duration) Option {
	return func(s *Server) {
		s.sseInterval = d
	}
}

// WithMaxSimulationTicks bounds the runs accepted by POST /simulations.
func WithMaxSimulationTicks(n int) Option {
	return func(s *Server) {
		s.maxTicks = n
	}
}

// New creates a new Server with all routes registered.
func New(info model.ServerInfo, h *hub.Hub, disp StatusSource, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger.With("component", "server"),
		info:        info,
		startTime:   time.Now(),
		hub:         h,
		dispatcher:  disp,
		sseInterval: time.Second,
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
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Route("/{name}", func(r chi.Router) {
				r.Post("/", s.handleCreateEvent)
				r.Delete("/", s.handleDeleteEvent)
				r.Post("/trigger", s.handleTriggerEvent)
			})
		})

		r.Get("/sessions", s.handleListSessions)

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", s.handleListBatches)
			r.Get("/{id}", s.handleGetBatch)
		})

		r.Route("/simulations", func(r chi.Router) {
			r.Get("/", s.handleListSimulations)
			r.Post("/", s.handleCreateSimulation)
			r.Get("/{id}", s.handleGetSimulation)
		})

		r.Route("/sse", func(r chi.Router) {
			r.Get("/status", s.handleSSEStatus)
		})
	})
}
