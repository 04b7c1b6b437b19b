// Package server exposes diagram generation over HTTP for editor and
// browser hosts.
//
// Hosts either post SQL and get a diagram back, or push a source with PUT
// and follow it: GET /api/source/diagram serves the current diagram with an
// ETag, and GET /api/events streams a server-sent event each time it changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/schemagraph/internal/notifier"
	"github.com/leapstack-labs/schemagraph/internal/watch"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
)

// Config holds configuration for the server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// RateLimit is requests per second per client on /api; 0 disables.
	RateLimit       float64
	Burst           int
	MaxBodyBytes    int64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Diagram is the base pipeline configuration for every request.
	Diagram diagram.Options

	// WatchPath, when set, is loaded as the source and reloaded on change.
	WatchPath string
	Debounce  time.Duration

	Logger *slog.Logger
}

// Server serves diagrams. The zero value is not usable; call New.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	notifier *notifier.Notifier

	mu      sync.RWMutex
	source  string
	current *diagram.Result
}

// New creates a server. Zero limits fall back to 4 MiB bodies, 10s request
// timeout and 5s shutdown.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.RateLimit))
	}
	return &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		notifier: notifier.New(),
	}
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "If-None-Match", RequestIDHeader},
			ExposedHeaders: []string{"ETag", RequestIDHeader},
			MaxAge:         300,
		}),
	)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newRateLimiter(s.cfg.RateLimit, s.cfg.Burst).middleware)
		}
		r.Post("/diagram", s.handleDiagram)
		r.Put("/source", s.handlePutSource)
		r.Get("/source/diagram", s.handleSourceDiagram)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// SetSource replaces the served source and regenerates its diagram. It
// reports whether the diagram changed; listeners are notified only then.
func (s *Server) SetSource(ctx context.Context, sql string) (*diagram.Result, bool, error) {
	res, err := diagram.Generate(ctx, sql, s.cfg.Diagram)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	changed := s.current == nil || s.current.Fingerprint != res.Fingerprint
	s.source = sql
	s.current = res
	s.mu.Unlock()

	if changed {
		s.logger.Info("source updated",
			slog.String("fingerprint", res.Fingerprint),
			slog.Int("nodes", len(res.Diagram.Nodes)))
		s.notifier.Broadcast(notifier.Event{Fingerprint: res.Fingerprint})
	}
	return res, changed, nil
}

// Current returns the diagram of the served source, or nil before any
// source is set.
func (s *Server) Current() *diagram.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Serve listens on cfg.Addr and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully. With WatchPath set, the file is watched alongside.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", "http://"+ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.WatchPath != "" {
		eg.Go(func() error {
			return watch.File(egctx, s.cfg.WatchPath, watch.Options{
				Debounce: s.cfg.Debounce,
				Logger:   s.logger,
			}, func(ctx context.Context, content string) {
				if _, _, err := s.SetSource(ctx, content); err != nil && ctx.Err() == nil {
					s.logger.Error("regenerate failed", slog.Any("error", err))
				}
			})
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
