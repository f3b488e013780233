// Package server exposes the simulator over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
	"github.com/Eternal-Darkness-07/GoQuant/internal/server/handler"
	"github.com/Eternal-Darkness-07/GoQuant/internal/server/middleware"
	"github.com/Eternal-Darkness-07/GoQuant/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	RateLimitPerSec int // per client IP; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Status     *handler.StatusHandler
	Simulation *handler.SimulationHandler
	Market     *handler.MarketHandler
}

// Server is the headless HTTP + WebSocket API server for the simulator.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limit, logging, CORS) wired up. metrics and
// limiter may be nil; the corresponding route and middleware are skipped.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, metrics http.Handler, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health and status.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Simulation endpoints.
	mux.HandleFunc("GET /api/result", handlers.Simulation.GetResult)
	mux.HandleFunc("GET /api/results", handlers.Simulation.ListResults)
	mux.HandleFunc("GET /api/params", handlers.Simulation.GetParams)
	mux.HandleFunc("PUT /api/params", handlers.Simulation.UpdateParams)
	mux.HandleFunc("POST /api/simulate", handlers.Simulation.Simulate)
	mux.HandleFunc("GET /api/impact/schedule", handlers.Simulation.GetSchedule)

	// Market data endpoints.
	mux.HandleFunc("GET /api/stats", handlers.Market.GetStats)
	mux.HandleFunc("GET /api/orderbook", handlers.Market.GetOrderbook)
	mux.HandleFunc("GET /api/history", handlers.Market.GetHistory)

	// Prometheus scrape endpoint.
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply rate limiting (skips if limiter is nil or the limit is zero).
	h = middleware.RateLimit(limiter, cfg.RateLimitPerSec, time.Second)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
