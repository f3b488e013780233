// Package app provides the top-level application lifecycle management for the
// trade cost simulator. It wires together all dependencies (market data feed,
// analytics pipeline, HTTP/WebSocket server, Redis mirror, and notifications)
// and runs them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Eternal-Darkness-07/GoQuant/internal/config"
)

// shutdownTimeout bounds how long the HTTP server may take to drain
// in-flight requests once shutdown begins.
const shutdownTimeout = 5 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
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

// Run is the main entry point. It wires all dependencies, starts the
// component goroutines, and blocks until the context is cancelled or a
// component fails. On return the caller should invoke Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("feed_url", a.cfg.Feed.URL()),
		slog.String("exchange", a.cfg.Feed.Exchange),
		slog.String("symbol", a.cfg.Feed.Symbol),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	deps.Simulator.Start()
	a.closers = append(a.closers, deps.Simulator.Stop)

	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})

	if deps.Publisher != nil {
		g.Go(func() error {
			return deps.Publisher.Run(ctx)
		})
	}

	if deps.Watcher != nil {
		g.Go(func() error {
			return deps.Watcher.Run(ctx)
		})
	}

	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return deps.Server.Shutdown(shutCtx)
		})
	}

	a.logger.InfoContext(ctx, "application started",
		slog.String("session_id", deps.SessionID),
		slog.Bool("server", deps.Server != nil),
		slog.Bool("redis", deps.Publisher != nil),
		slog.Bool("notifications", deps.Notifier.Enabled()),
	)

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
