package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Eternal-Darkness-07/GoQuant/internal/cache/redis"
	"github.com/Eternal-Darkness-07/GoQuant/internal/config"
	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
	"github.com/Eternal-Darkness-07/GoQuant/internal/feed"
	"github.com/Eternal-Darkness-07/GoQuant/internal/model"
	"github.com/Eternal-Darkness-07/GoQuant/internal/notify"
	"github.com/Eternal-Darkness-07/GoQuant/internal/server"
	"github.com/Eternal-Darkness-07/GoQuant/internal/server/handler"
	"github.com/Eternal-Darkness-07/GoQuant/internal/server/ws"
	"github.com/Eternal-Darkness-07/GoQuant/internal/simulator"
	"github.com/Eternal-Darkness-07/GoQuant/internal/telemetry"
)

// Dependencies bundles every component the application run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	SessionID string
	StartedAt time.Time

	Metrics   *telemetry.Metrics
	Simulator *simulator.Simulator
	Hub       *ws.Hub
	Notifier  *notify.Notifier

	// Optional components; nil when the corresponding configuration section
	// is disabled.
	Publisher   *redis.Publisher
	RateLimiter domain.RateLimiter
	Watcher     *notify.HealthWatcher
	Server      *server.Server
}

// Wire constructs all concrete components from the given configuration and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	// --- Telemetry ---
	deps.Metrics = telemetry.New()

	// --- Simulator pipeline ---
	deps.Simulator = simulator.New(simulator.Config{
		Feed: feed.Config{
			URL:      cfg.Feed.URL(),
			Exchange: cfg.Feed.Exchange,
			Symbol:   cfg.Feed.Symbol,
			MaxIdle:  cfg.Feed.MaxIdle.Duration,
		},
		WindowSize:    cfg.Simulator.WindowSize,
		ScheduleSteps: cfg.Simulator.ScheduleSteps,
		Params: domain.SimulationParams{
			Exchange:    cfg.Feed.Exchange,
			Symbol:      cfg.Feed.Symbol,
			OrderType:   domain.OrderTypeMarket,
			QuantityUSD: cfg.Simulator.QuantityUSD,
			Volatility:  cfg.Simulator.Volatility,
			FeeTier:     cfg.Simulator.FeeTier,
		},
		Impact: model.ImpactParams{
			PermanentFactor: cfg.Impact.PermanentFactor,
			TemporaryFactor: cfg.Impact.TemporaryFactor,
			Volatility:      cfg.Simulator.Volatility,
			TimeHorizon:     cfg.Impact.TimeHorizon,
			RiskAversion:    cfg.Impact.RiskAversion,
		},
		Symbols: cfg.Simulator.Symbols,
	}, deps.Metrics, logger)
	deps.Simulator.AddListener(deps.Metrics)

	// --- WebSocket hub ---
	deps.Hub = ws.NewHub(ws.Config{
		SessionID: deps.SessionID,
		Exchange:  cfg.Feed.Exchange,
		Symbol:    cfg.Feed.Symbol,
		StartedAt: deps.StartedAt,
	}, deps.Simulator, deps.Metrics, logger)
	deps.Simulator.AddListener(deps.Hub)

	// --- Redis result mirror (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Publisher = redis.NewPublisher(redisClient, redis.PublisherConfig{
			Channel:   cfg.Redis.Channel,
			LatestKey: cfg.Redis.LatestKey,
			LatestTTL: cfg.Redis.LatestTTL.Duration,
		}, deps.Metrics, logger)
		deps.Simulator.AddListener(deps.Publisher)

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if deps.Notifier.Enabled() {
		deps.Watcher = notify.NewHealthWatcher(
			deps.Simulator,
			deps.Notifier,
			0, // default check interval
			cfg.Notify.UnhealthyAfter.Duration,
			logger,
		)
	}

	// --- HTTP server (optional) ---
	if cfg.Server.Enabled {
		handlers := server.Handlers{
			Health: handler.NewHealthHandler(deps.Simulator, logger),
			Status: handler.NewStatusHandler(deps.Simulator, handler.SessionInfo{
				SessionID: deps.SessionID,
				Exchange:  cfg.Feed.Exchange,
				Symbol:    cfg.Feed.Symbol,
				StartedAt: deps.StartedAt,
			}),
			Simulation: handler.NewSimulationHandler(deps.Simulator, logger),
			Market:     handler.NewMarketHandler(deps.Simulator, logger),
		}
		deps.Server = server.NewServer(server.Config{
			Port:            cfg.Server.Port,
			CORSOrigins:     cfg.Server.CORSOrigins,
			RateLimitPerSec: cfg.Server.RateLimitPerSec,
		}, handlers, deps.Hub, deps.Metrics.Handler(), deps.RateLimiter, logger)
	}

	return deps, cleanup, nil
}
