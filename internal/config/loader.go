package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GOQUANT_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus
// environment overrides apply. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GOQUANT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject credentials and per-deploy endpoints
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsHost, "GOQUANT_FEED_WS_HOST")
	setStr(&cfg.Feed.Exchange, "GOQUANT_FEED_EXCHANGE")
	setStr(&cfg.Feed.Symbol, "GOQUANT_FEED_SYMBOL")
	setDuration(&cfg.Feed.MaxIdle, "GOQUANT_FEED_MAX_IDLE")

	// ── Simulator ──
	setInt(&cfg.Simulator.WindowSize, "GOQUANT_SIMULATOR_WINDOW_SIZE")
	setFloat64(&cfg.Simulator.QuantityUSD, "GOQUANT_SIMULATOR_QUANTITY_USD")
	setFloat64(&cfg.Simulator.Volatility, "GOQUANT_SIMULATOR_VOLATILITY")
	setInt(&cfg.Simulator.FeeTier, "GOQUANT_SIMULATOR_FEE_TIER")
	setInt(&cfg.Simulator.ScheduleSteps, "GOQUANT_SIMULATOR_SCHEDULE_STEPS")
	setStringSlice(&cfg.Simulator.Symbols, "GOQUANT_SIMULATOR_SYMBOLS")

	// ── Impact ──
	setFloat64(&cfg.Impact.PermanentFactor, "GOQUANT_IMPACT_PERMANENT_FACTOR")
	setFloat64(&cfg.Impact.TemporaryFactor, "GOQUANT_IMPACT_TEMPORARY_FACTOR")
	setFloat64(&cfg.Impact.TimeHorizon, "GOQUANT_IMPACT_TIME_HORIZON")
	setFloat64(&cfg.Impact.RiskAversion, "GOQUANT_IMPACT_RISK_AVERSION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "GOQUANT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "GOQUANT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GOQUANT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerSec, "GOQUANT_SERVER_RATE_LIMIT_PER_SEC")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "GOQUANT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "GOQUANT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GOQUANT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GOQUANT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GOQUANT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GOQUANT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GOQUANT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Channel, "GOQUANT_REDIS_CHANNEL")
	setStr(&cfg.Redis.LatestKey, "GOQUANT_REDIS_LATEST_KEY")
	setDuration(&cfg.Redis.LatestTTL, "GOQUANT_REDIS_LATEST_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "GOQUANT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "GOQUANT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "GOQUANT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "GOQUANT_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.UnhealthyAfter, "GOQUANT_NOTIFY_UNHEALTHY_AFTER")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "GOQUANT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
