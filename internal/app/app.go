// Package app provides the top-level application lifecycle for the
// settlement daemon. It wires together all dependencies (protocol core,
// stores, caches, blob storage, and notifications) and runs the HTTP and
// WebSocket surfaces for the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/btcsettle/btcsettle/internal/config"
	"github.com/btcsettle/btcsettle/internal/server"
	"github.com/btcsettle/btcsettle/internal/server/handler"
	"github.com/btcsettle/btcsettle/internal/server/ws"
	"github.com/btcsettle/btcsettle/internal/service"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the service
// surfaces, and blocks until the context is cancelled or a surface fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "full", "memory":
		return a.serve(ctx, deps, mode)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// serve builds the settlement service around the wired dependencies and runs
// the HTTP server and WebSocket hub until the context is cancelled.
func (a *App) serve(ctx context.Context, deps *Dependencies, mode string) error {
	svc := service.NewSettlementService(
		deps.Factory,
		deps.Relay,
		deps.Clock,
		deps.JournalStore,
		deps.PairStore,
		deps.PairCache,
		deps.SignalBus,
		deps.Archiver,
		deps.Notifier,
		a.logger,
	)
	if err := svc.Restore(ctx); err != nil {
		return fmt.Errorf("app: restore service: %w", err)
	}

	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "server disabled, idling until cancelled")
		<-ctx.Done()
		return nil
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      mode,
		StartedAt: deps.Clock.Now(),
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: time.Duration(a.cfg.Server.RateLimitSeconds) * time.Second,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Pairs:    handler.NewPairHandler(svc, a.logger),
			Exercise: handler.NewExerciseHandler(svc, a.logger),
			Treasury: handler.NewTreasuryHandler(svc, a.logger),
			Relay:    handler.NewRelayHandler(svc, a.logger),
			Journal:  handler.NewJournalHandler(svc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed && err != context.Canceled {
		return fmt.Errorf("app: serve: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
