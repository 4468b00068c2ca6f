// Package server runs the opsctl HTTP agent: health and readiness probes,
// Prometheus metrics and the API routes registered by the caller.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	name    = "opsctl"
	version = "dev"
)

// Server is the HTTP agent.
type Server struct {
	config     *Config
	httpServer *http.Server
	limiter    *rate.Limiter
	inflight   *semaphore.Weighted
	handlers   map[string]http.HandlerFunc

	mu      sync.RWMutex
	ready   bool
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithName sets the name reported by the root route.
func WithName(n string) Option {
	return func(*Server) {
		if n != "" {
			name = n
		}
	}
}

// WithVersion sets the version reported by the root route.
func WithVersion(v string) Option {
	return func(*Server) {
		if v != "" {
			version = v
		}
	}
}

// WithHandler registers API routes. API routes get the full middleware
// chain: request id, rate limiting, concurrency limit and access logging.
func WithHandler(handlers map[string]http.HandlerFunc) Option {
	return func(s *Server) {
		for pattern, h := range handlers {
			s.handlers[pattern] = h
		}
	}
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		config:   DefaultConfig(),
		handlers: make(map[string]http.HandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.limiter = rate.NewLimiter(s.config.RateLimit, s.config.RateLimitBurst)
	maxInflight := s.config.MaxConcurrentRequests
	if maxInflight < 1 {
		maxInflight = 1
	}
	s.inflight = semaphore.NewWeighted(maxInflight)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(s.config.Address, fmt.Sprintf("%d", s.config.Port)),
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetReady flips the readiness probe. The first transition to ready starts
// the uptime clock.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	if ready && s.started.IsZero() {
		s.started = time.Now()
	}
	s.mu.Unlock()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("address", s.httpServer.Addr),
			slog.String("version", version))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.SetReady(true)

	select {
	case err, ok := <-errCh:
		s.SetReady(false)
		if ok && err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.SetReady(false)
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// routes returns the registered API patterns, sorted.
func (s *Server) routes() []string {
	out := make([]string, 0, len(s.handlers))
	for p := range s.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
