// Package server hosts the read-only HTTP API over the model registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/gotune/internal/errors"
	"github.com/3leaps/gotune/internal/server/handlers"
	"github.com/3leaps/gotune/internal/server/metrics"
	"github.com/3leaps/gotune/internal/server/middleware"
)

// Timeouts bound the underlying http.Server.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// DefaultTimeouts matches the config defaults.
var DefaultTimeouts = Timeouts{
	Read:     30 * time.Second,
	Write:    30 * time.Second,
	Idle:     120 * time.Second,
	Shutdown: 10 * time.Second,
}

// Option configures a Server.
type Option func(*Server)

// WithModels mounts /v1/models over store.
func WithModels(store handlers.ModelStore) Option {
	return func(s *Server) { s.models = store }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(s *Server) { s.timeouts = t }
}

func WithVersion(info handlers.VersionInfo) Option {
	return func(s *Server) { s.version = info }
}

// WithMetrics instruments every route and mounts GET /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

type Server struct {
	host     string
	port     int
	router   chi.Router
	logger   *zap.Logger
	timeouts Timeouts
	version  handlers.VersionInfo
	models   handlers.ModelStore
	metrics  *metrics.Collector
}

// New builds the router. Health routes use the package level manager from
// handlers.InitHealthManager.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:     host,
		port:     port,
		logger:   zap.NewNop(),
		timeouts: DefaultTimeouts,
		version:  handlers.VersionInfo{Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recovery)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.NotFound(apperrors.NotFoundHandler)
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler)

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/version", handlers.VersionHandler(s.version))
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	if s.models != nil {
		m := &handlers.Models{Store: s.models}
		r.Route("/v1/models", func(r chi.Router) {
			r.Get("/", m.List)
			r.Get("/{name}", m.Get)
		})
	}
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Port() int { return s.port }

func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
