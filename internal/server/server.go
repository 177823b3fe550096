package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/server/handler"
	"github.com/btcsettle/btcsettle/internal/server/middleware"
	"github.com/btcsettle/btcsettle/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	RateLimit       int           // requests per window per client, 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Pairs    *handler.PairHandler
	Exercise *handler.ExerciseHandler
	Treasury *handler.TreasuryHandler
	Relay    *handler.RelayHandler
	Journal  *handler.JournalHandler
}

// Server is the HTTP + WebSocket API server for the settlement protocol.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pair lifecycle.
	mux.HandleFunc("GET /api/pairs", handlers.Pairs.ListPairs)
	mux.HandleFunc("POST /api/pairs", handlers.Pairs.CreatePair)
	mux.HandleFunc("GET /api/pairs/{id}", handlers.Pairs.GetPair)
	mux.HandleFunc("GET /api/pairs/{id}/balances", handlers.Pairs.GetBalances)
	mux.HandleFunc("GET /api/pairs/{id}/sellers", handlers.Pairs.ListSellers)
	mux.HandleFunc("POST /api/pairs/{id}/write", handlers.Pairs.WritePair)
	mux.HandleFunc("POST /api/pairs/{id}/transfer", handlers.Pairs.Transfer)

	// Two-phase exercise.
	mux.HandleFunc("POST /api/pairs/{id}/exercise/request", handlers.Exercise.RequestExercise)
	mux.HandleFunc("POST /api/pairs/{id}/exercise/execute", handlers.Exercise.ExecuteExercise)
	mux.HandleFunc("GET /api/pairs/{id}/exercise/{request}", handlers.Exercise.GetRequest)
	mux.HandleFunc("POST /api/pairs/{id}/reclaim", handlers.Exercise.Reclaim)
	mux.HandleFunc("POST /api/pairs/{id}/refund", handlers.Exercise.Refund)

	// Treasury custody.
	mux.HandleFunc("POST /api/treasury/{asset}/position", handlers.Treasury.SetPosition)
	mux.HandleFunc("POST /api/treasury/{asset}/deposit", handlers.Treasury.Deposit)
	mux.HandleFunc("GET /api/treasury/{asset}/balance", handlers.Treasury.GetBalance)

	// Header relay.
	mux.HandleFunc("POST /api/relay/headers", handlers.Relay.SubmitHeader)

	// Audit journal.
	mux.HandleFunc("GET /api/journal", handlers.Journal.ListJournal)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}

	h = middleware.Logging(logger)(h)
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
