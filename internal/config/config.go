// Package config defines the top-level configuration for the trade cost
// simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by GOQUANT_* environment
// variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Simulator SimulatorConfig `toml:"simulator"`
	Impact    ImpactConfig    `toml:"impact"`
	Server    ServerConfig    `toml:"server"`
	Redis     RedisConfig     `toml:"redis"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig holds the venue L2 orderbook feed endpoint parameters.
type FeedConfig struct {
	WsHost   string   `toml:"ws_host"`
	Exchange string   `toml:"exchange"`
	Symbol   string   `toml:"symbol"`
	MaxIdle  duration `toml:"max_idle"`
}

// URL resolves the full WebSocket endpoint for the configured instrument,
// e.g. wss://host/ws/l2-orderbook/okx/BTC-USDT-SWAP.
func (f FeedConfig) URL() string {
	return fmt.Sprintf("%s/ws/l2-orderbook/%s/%s-SWAP",
		strings.TrimRight(f.WsHost, "/"),
		strings.ToLower(f.Exchange),
		f.Symbol,
	)
}

// SimulatorConfig holds the initial operator parameters and pipeline sizing.
type SimulatorConfig struct {
	WindowSize    int      `toml:"window_size"`
	QuantityUSD   float64  `toml:"quantity_usd"`
	Volatility    float64  `toml:"volatility"`
	FeeTier       int      `toml:"fee_tier"`
	ScheduleSteps int      `toml:"schedule_steps"`
	Symbols       []string `toml:"symbols"`
}

// ImpactConfig holds the Almgren-Chriss impact model coefficients.
type ImpactConfig struct {
	PermanentFactor float64 `toml:"permanent_factor"`
	TemporaryFactor float64 `toml:"temporary_factor"`
	TimeHorizon     float64 `toml:"time_horizon"`
	RiskAversion    float64 `toml:"risk_aversion"`
}

// ServerConfig holds HTTP/WebSocket API server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimitPerSec int      `toml:"rate_limit_per_sec"`
}

// RedisConfig holds the optional result mirror parameters. When enabled,
// every simulation result is published to Channel and the latest result is
// kept under LatestKey with a short TTL.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	Channel    string   `toml:"channel"`
	LatestKey  string   `toml:"latest_key"`
	LatestTTL  duration `toml:"latest_ttl"`
}

// NotifyConfig holds operator alert channel credentials. Alerts fire on feed
// health transitions; with no channel configured they are disabled.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	UnhealthyAfter    duration `toml:"unhealthy_after"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			WsHost:   "wss://ws.gomarket-cpp.goquant.io",
			Exchange: "OKX",
			Symbol:   "BTC-USDT",
			MaxIdle:  duration{10 * time.Second},
		},
		Simulator: SimulatorConfig{
			WindowSize:    100,
			QuantityUSD:   100.0,
			Volatility:    0.1,
			FeeTier:       0,
			ScheduleSteps: 10,
			Symbols:       []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"},
		},
		Impact: ImpactConfig{
			PermanentFactor: 0.1,
			TemporaryFactor: 0.1,
			TimeHorizon:     1.0,
			RiskAversion:    1.0,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerSec: 20,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			Channel:    "goquant:results",
			LatestKey:  "goquant:result:latest",
			LatestTTL:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events:         []string{"feed_unhealthy", "feed_recovered"},
			UnhealthyAfter: duration{30 * time.Second},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.WsHost == "" {
		errs = append(errs, "feed: ws_host must not be empty")
	} else if !strings.HasPrefix(c.Feed.WsHost, "wss://") && !strings.HasPrefix(c.Feed.WsHost, "ws://") {
		errs = append(errs, fmt.Sprintf("feed: ws_host %q must be a ws:// or wss:// URL", c.Feed.WsHost))
	}
	if c.Feed.Exchange == "" {
		errs = append(errs, "feed: exchange must not be empty")
	}
	if c.Feed.Symbol == "" {
		errs = append(errs, "feed: symbol must not be empty")
	}
	if c.Feed.MaxIdle.Duration <= 0 {
		errs = append(errs, "feed: max_idle must be positive")
	}

	// Simulator
	if c.Simulator.WindowSize < 3 {
		errs = append(errs, fmt.Sprintf("simulator: window_size must be >= 3 for volatility, got %d", c.Simulator.WindowSize))
	}
	if c.Simulator.QuantityUSD < 1 || c.Simulator.QuantityUSD > 10_000 {
		errs = append(errs, fmt.Sprintf("simulator: quantity_usd must be 1-10000, got %v", c.Simulator.QuantityUSD))
	}
	if c.Simulator.Volatility < 0 || c.Simulator.Volatility > 1 {
		errs = append(errs, fmt.Sprintf("simulator: volatility must be 0.0-1.0, got %v", c.Simulator.Volatility))
	}
	if c.Simulator.FeeTier < 0 {
		errs = append(errs, fmt.Sprintf("simulator: fee_tier must be >= 0, got %d", c.Simulator.FeeTier))
	}
	if c.Simulator.ScheduleSteps < 1 {
		errs = append(errs, fmt.Sprintf("simulator: schedule_steps must be >= 1, got %d", c.Simulator.ScheduleSteps))
	}
	if len(c.Simulator.Symbols) == 0 {
		errs = append(errs, "simulator: symbols must list at least one instrument")
	} else {
		found := false
		for _, sym := range c.Simulator.Symbols {
			if sym == c.Feed.Symbol {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("simulator: symbols must include the feed symbol %q", c.Feed.Symbol))
		}
	}

	// Impact
	if c.Impact.PermanentFactor < 0 {
		errs = append(errs, "impact: permanent_factor must be >= 0")
	}
	if c.Impact.TemporaryFactor < 0 {
		errs = append(errs, "impact: temporary_factor must be >= 0")
	}
	if c.Impact.TimeHorizon <= 0 {
		errs = append(errs, "impact: time_horizon must be > 0")
	}
	if c.Impact.RiskAversion < 0 {
		errs = append(errs, "impact: risk_aversion must be >= 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerSec < 0 {
			errs = append(errs, "server: rate_limit_per_sec must be >= 0")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.Channel == "" {
			errs = append(errs, "redis: channel must not be empty when enabled")
		}
		if c.Redis.LatestKey == "" {
			errs = append(errs, "redis: latest_key must not be empty when enabled")
		}
	}

	// Notify: token and chat ID go together.
	tok := c.Notify.TelegramToken != ""
	chat := c.Notify.TelegramChatID != ""
	if tok != chat {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must both be set")
	}
	if (tok || c.Notify.DiscordWebhookURL != "") && c.Notify.UnhealthyAfter.Duration <= 0 {
		errs = append(errs, "notify: unhealthy_after must be positive when a channel is configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
