package algorithm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kmeansviz/internal/api"
	"kmeansviz/internal/config"
	"kmeansviz/internal/kmeans"
	"kmeansviz/internal/logger"
)

// Server exposes a State over HTTP
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	state      *State
	log        *slog.Logger
}

// New creates the algorithm service listening on the configured address
func New(state *State, cfg config.Algorithm) *Server {
	s := &Server{
		router: chi.NewRouter(),
		state:  state,
		log:    logger.Component("algorithm"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// EngineConfig maps the algorithm configuration onto the engine's
func EngineConfig(cfg config.Algorithm) kmeans.Config {
	return kmeans.Config{
		DatasetSize:   cfg.DatasetSize,
		MaxIterations: cfg.MaxIterations,
		RelTolerance:  cfg.RelTolerance,
		AbsTolerance:  cfg.AbsTolerance,
		Seed:          cfg.Seed,
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(instrument)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/initialize", s.handleInitialize)
	s.router.Post("/step", s.handleStep)
	s.router.Post("/converge", s.handleConverge)
	s.router.Post("/reset", s.handleReset)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting algorithm service", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("algorithm service failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down algorithm service...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("algorithm service shutdown failed: %w", err)
	}
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInitialize handles POST /initialize
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req api.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	resp, err := s.state.Initialize(r.Header.Get(api.SessionHeader), req)
	if err != nil {
		s.log.Warn("Initialization rejected", "error", err, "k", req.NumClusters, "method", req.InitMethod)
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.log.Info("Dataset initialized",
		"points", len(resp.DataPoints),
		"k", req.NumClusters,
		"method", req.InitMethod,
	)
	s.respondJSON(w, http.StatusOK, resp)
}

// handleStep handles POST /step
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeIterate(w, r)
	if !ok {
		return
	}

	resp, err := s.state.Step(r.Header.Get(api.SessionHeader), req)
	if err != nil {
		s.respondError(w, statusFor(err), errorMessage(err))
		return
	}
	iterationsTotal.WithLabelValues("step").Inc()
	s.respondJSON(w, http.StatusOK, resp)
}

// handleConverge handles POST /converge
func (s *Server) handleConverge(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeIterate(w, r)
	if !ok {
		return
	}

	resp, err := s.state.Converge(r.Header.Get(api.SessionHeader), req)
	if err != nil {
		s.respondError(w, statusFor(err), errorMessage(err))
		return
	}
	iterationsTotal.WithLabelValues("converge").Add(float64(resp.Iterations))
	s.log.Info("Run converged", "iterations", resp.Iterations, "inertia", resp.Inertia)
	s.respondJSON(w, http.StatusOK, resp)
}

// handleReset handles POST /reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.state.Reset()
	s.respondJSON(w, http.StatusOK, api.ResetResponse{Status: "reset"})
}

// decodeIterate reads an optional IterateRequest; an empty body is fine
func (s *Server) decodeIterate(w http.ResponseWriter, r *http.Request) (api.IterateRequest, bool) {
	var req api.IterateRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return req, false
	}
	return req, true
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownSession):
		return http.StatusConflict
	case errors.Is(err, ErrIncompleteCentroids),
		errors.Is(err, kmeans.ErrInvalidK),
		errors.Is(err, kmeans.ErrUnknownMethod),
		errors.Is(err, kmeans.ErrEmptyDataset):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps the operator-facing text for incomplete seeds stable
func errorMessage(err error) string {
	if errors.Is(err, ErrIncompleteCentroids) {
		return ErrIncompleteCentroids.Error()
	}
	return err.Error()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, api.ErrorResponse{Error: message})
}
