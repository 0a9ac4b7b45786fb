// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package server exposes the analyst, the query guard, the schema cache
// and the query log over HTTP. Routes are registered with huma on a chi
// router so the OpenAPI document is generated from the handler types.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lpararaa/pitchgraph/internal/metrics"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// DefaultCORSOrigin is the address of the bundled web front end.
const DefaultCORSOrigin = "http://localhost:3000"

const shutdownTimeout = 10 * time.Second

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
	// Chat requests wait on model calls, so the write timeout is generous.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	// MaxConcurrentChats bounds in-flight chat requests across all clients.
	MaxConcurrentChats int
	Metrics            *metrics.Metrics
	Version            string
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services
	chats    *chatGate
	started  time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with every route registered.
func New(cfg Config, svc *Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, pgerr.New(pgerr.CodeServerConfigInvalid, "listen address is required")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 180 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	chats, err := newChatGate(cfg.MaxConcurrentChats)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		services: svc,
		chats:    chats,
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(metricsMiddleware(cfg.Metrics))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, s.done))

	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	humaConfig := huma.DefaultConfig("Pitchgraph API", cfg.Version)
	humaConfig.Info.Description = "Question answering and guarded Cypher over Premier League statistics"
	s.api = humachi.New(r, humaConfig)
	s.router = r

	s.registerRoutes()

	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, used to render the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return pgerr.Errorf(pgerr.CodeServerStartFailure, "listening on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if err != nil {
			return pgerr.Errorf(pgerr.CodeServerStartFailure, "serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return pgerr.Errorf(pgerr.CodeServerShutdownFailure, "shutting down: %w", err)
	}
	slog.Info("http server stopped")

	return <-errCh
}

// Close stops background goroutines. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{DefaultCORSOrigin}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// metricsMiddleware records every request under its chi route pattern so
// path parameters do not explode label cardinality.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}
