package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kmeansviz/internal/config"
	"kmeansviz/internal/logger"
	"kmeansviz/internal/session"
)

// Server represents the operator web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	session    *session.Controller
	config     config.Server
	ui         config.UI
	log        *slog.Logger
	renderer   *TemplateRenderer
}

// New creates a new HTTP server instance around a session controller
func New(ctrl *session.Controller, cfg config.Server, ui config.UI) *Server {
	log := logger.Component("server")

	// Hot reload only when templates live on disk
	renderer, err := NewTemplateRenderer(cfg.TemplateDir != "", cfg.TemplateDir)
	if err != nil {
		log.Warn("Failed to initialize template renderer, web pages may not work", "error", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		session:  ctrl,
		config:   cfg,
		ui:       ui,
		log:      log,
		renderer: renderer,
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	if s.config.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "HX-Request", "HX-Target", "HX-Trigger", "HX-Current-URL"},
			ExposedHeaders:   []string{"HX-Trigger"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}

	s.router.Use(securityHeaders)
	s.router.Use(instrument)
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// Web routes (HTML pages)
	s.router.Get("/", s.handleIndexPage)
	s.router.With(noCache).Get("/scene", s.handleScenePage)

	// HTMX partial routes
	s.router.With(noCache).Get("/partials/controls", s.handleControlsPartial)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)

		r.Get("/scene", s.handleSceneJSON)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/initialize", s.handleInitialize)
			r.Post("/step", s.handleStep)
			r.Post("/converge", s.handleConverge)
			r.Post("/reset", s.handleReset)
			r.Post("/centroids", s.handlePlaceCentroid)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
