// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects handlers, middleware and
// routes, and runs the listeners until the caller's context ends.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:     sqlstore.Open → server.New(cfg, store, logger)
//	server.New:  store → SnippetService → SnippetHandler → routes
//
// The server does not open or close the store. main owns that lifecycle,
// which keeps the store usable by tests that build a Server directly.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/snippet-store/internal/handler"
	"github.com/sakif/snippet-store/internal/middleware"
	"github.com/sakif/snippet-store/internal/repository"
	"github.com/sakif/snippet-store/internal/service"
)

const defaultShutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port int
	// MetricsPort serves /metrics on its own listener. Zero mounts /metrics
	// on the API router instead.
	MetricsPort     int
	ShutdownTimeout time.Duration
}

// Store is what the server needs from storage: the repositories for the
// service and a ping for /healthz.
type Store interface {
	repository.Store
	handler.Pinger
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	registry *prometheus.Registry
}

// New builds the router. It does not listen; call Start for that.
func New(cfg Config, store Store, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: registry,
	}
	s.setupRoutes(store)
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the Prometheus scrape handler for this server's
// registry.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                                       store ping
//	GET    /metrics                                       (when MetricsPort == 0)
//	POST   /api/users/{ownerID}/snippets                  upsert
//	GET    /api/users/{ownerID}/snippets                  list
//	GET    /api/users/{ownerID}/snippets/{name}           get
//	GET    /api/users/{ownerID}/snippets/{name}/versions  history
//	DELETE /api/users/{ownerID}/snippets/{name}           delete
//	GET    /api/users/{ownerID}/search                    search
//
// MIDDLEWARE ORDER MATTERS:
// RequestID must run before Logger so the id is in the log line. Recoverer
// sits inside Logger and Metrics so a recovered panic is logged and counted
// as the 500 it became.
func (s *Server) setupRoutes(store Store) {
	metrics := middleware.NewMetrics(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)

	healthHandler := handler.NewHealthHandler(store, s.logger)
	s.router.Get("/healthz", healthHandler.HandleHealth)

	if s.config.MetricsPort == 0 {
		s.router.Handle("/metrics", s.MetricsHandler())
	}

	snippetService := service.NewSnippetService(store, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)

	s.router.Route("/api/users/{ownerID}", snippetHandler.Routes)
}

// Start runs the API listener, and the metrics listener when configured,
// until ctx is cancelled or one of them fails.
//
// GRACEFUL SHUTDOWN:
// When ctx ends every server gets ShutdownTimeout to finish in-flight
// requests. A listener failure (port already in use) cancels the group,
// shuts the other listener down, and is returned.
func (s *Server) Start(ctx context.Context) error {
	servers := []*namedServer{{
		name: "api",
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", s.config.Port),
			Handler:      s.router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}}

	if s.config.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.MetricsHandler())
		servers = append(servers, &namedServer{
			name: "metrics",
			srv: &http.Server{
				Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			},
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, ns := range servers {
		g.Go(func() error {
			ln, err := net.Listen("tcp", ns.srv.Addr)
			if err != nil {
				return fmt.Errorf("%s listener: %w", ns.name, err)
			}
			s.logger.Info("server is online",
				slog.String("server", ns.name),
				slog.String("addr", ln.Addr().String()),
			)
			if err := ns.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", ns.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", slog.Duration("timeout", s.config.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, ns := range servers {
			if err := ns.srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s graceful shutdown: %w", ns.name, err))
				continue
			}
			s.logger.Info("server stopped gracefully", slog.String("server", ns.name))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

type namedServer struct {
	name string
	srv  *http.Server
}
