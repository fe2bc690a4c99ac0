// Package controller wires the HTTP API for the conversion service.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/controller/handlers"
	"github.com/ShivamThakkar1/imgtovideo/internal/controller/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Addr                string
	MetricsHandler      http.Handler
	RateLimit           float64
	RateLimitBurst      int
	RateLimitMaxClients int
	ShutdownTimeout     time.Duration
}

// Server is the HTTP server for the conversion API.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New creates a new server with all routes mounted.
func New(opts Options, h *handlers.Handlers, logger *slog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:        opts.Addr,
			Handler:     NewRouter(opts, h, logger),
			ReadTimeout: 10 * time.Second,
			// Downloads stream whole videos, so no WriteTimeout.
			IdleTimeout: 60 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// NewRouter builds the chi router with middleware and routes.
func NewRouter(opts Options, h *handlers.Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics())

	limitOpts := []middleware.RateLimitOption{middleware.WithRate(opts.RateLimit, opts.RateLimitBurst)}
	if opts.RateLimitMaxClients > 0 {
		limitOpts = append(limitOpts, middleware.WithMaxClients(opts.RateLimitMaxClients))
	}
	limiter := middleware.NewRateLimiter(limitOpts...)
	r.With(limiter.Middleware()).Post("/convert", h.Convert)

	r.Get("/status/{job_id}", h.GetStatus)
	r.Get("/download/{job_id}", h.Download)
	r.Get("/health", h.Health)
	r.Get("/jobs", h.ListJobs)

	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	return r
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
