// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jeranaias/nbassist/internal/gateway"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the server listens when no address is given.
	DefaultAddr = "127.0.0.1:8888"

	// MaxRequestBodySize bounds request bodies. Notebook snapshots with rich
	// outputs can be large.
	MaxRequestBodySize = 16 * 1024 * 1024

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// Version is the server version.
	Version = "0.1.0"
)

// Service answers the assistant requests.
type Service interface {
	Backends(ctx context.Context) []gateway.BackendDescriptor
	Generate(ctx context.Context, req gateway.GenerateRequest) gateway.GenerateResponse
	Fix(ctx context.Context, req gateway.FixRequest) gateway.FixResponse
}

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats tracks request counters.
type Stats struct {
	TotalRequests  atomic.Int64
	ChatRequests   atomic.Int64
	FixRequests    atomic.Int64
	ProviderErrors atomic.Int64
	StartTime      time.Time
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalRequests  int64   `json:"total_requests"`
	ChatRequests   int64   `json:"chat_requests"`
	FixRequests    int64   `json:"fix_requests"`
	ProviderErrors int64   `json:"provider_errors"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsResponse {
	return StatsResponse{
		TotalRequests:  s.TotalRequests.Load(),
		ChatRequests:   s.ChatRequests.Load(),
		FixRequests:    s.FixRequests.Load(),
		ProviderErrors: s.ProviderErrors.Load(),
		UptimeSeconds:  time.Since(s.StartTime).Seconds(),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Token          string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server is the assistant HTTP server.
type Server struct {
	svc    Service
	opts   Options
	router chi.Router
	stats  *Stats
	logger *slog.Logger
	server *http.Server
}

// New creates a Server backed by svc.
func New(svc Service, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 180 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		opts:   opts,
		stats:  &Stats{StartTime: time.Now()},
		logger: logger.With("component", "server"),
	}
	s.router = s.routes()
	return s
}

// routes builds the router.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(s.opts.AllowedOrigins))
	r.Use(s.countRequests)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.Token, s.logger))
		r.Get("/stats", s.handleStats)
		r.Route("/ai-assistant", func(r chi.Router) {
			r.Get("/config", s.handleConfig)
			r.Post("/llm", s.handleLLM)
			r.Post("/fix-error", s.handleFixError)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed"})
	})
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stats returns the request counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.TotalRequests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "nbassist API is running"})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// handleConfig handles GET /ai-assistant/config.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gateway.ConfigResponse{AvailableModels: s.svc.Backends(r.Context())})
}

// handleLLM handles POST /ai-assistant/llm.
func (s *Server) handleLLM(w http.ResponseWriter, r *http.Request) {
	var req gateway.GenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.stats.ChatRequests.Add(1)
	s.logger.Debug("llm request", "backend", req.Backend, "prompt_chars", len(req.Prompt),
		"messages", len(req.Messages), "cells", len(req.NotebookContent.Cells))

	resp := s.svc.Generate(r.Context(), req)
	if resp.Error {
		s.stats.ProviderErrors.Add(1)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFixError handles POST /ai-assistant/fix-error.
func (s *Server) handleFixError(w http.ResponseWriter, r *http.Request) {
	var req gateway.FixRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.stats.FixRequests.Add(1)
	s.logger.Debug("fix request", "backend", req.Backend, "code_chars", len(req.Code), "errors", len(req.Errors))

	writeJSON(w, http.StatusOK, s.svc.Fix(r.Context(), req))
}

// decode reads a JSON body into v, answering 400 or 413 on failure. Absent
// llm_type defaults to openai.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Message: "Request body too large"})
			return false
		}
		s.logger.Info("invalid request body", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return false
	}
	switch req := v.(type) {
	case *gateway.GenerateRequest:
		if req.Backend == "" {
			req.Backend = "openai"
		}
	case *gateway.FixRequest:
		if req.Backend == "" {
			req.Backend = "openai"
		}
	}
	return true
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()
	s.logger.Info("server started", "addr", ln.Addr().String(), "version", Version,
		"auth", s.opts.Token != "")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody is the JSON body of a non-2xx response.
type errorBody = gateway.ErrorBody

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
