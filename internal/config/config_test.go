package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wss://ws.gomarket-cpp.goquant.io/ws/l2-orderbook/okx/BTC-USDT-SWAP", cfg.Feed.URL())
	assert.Equal(t, 100, cfg.Simulator.WindowSize)
	assert.Equal(t, 10*time.Second, cfg.Feed.MaxIdle.Duration)
	assert.True(t, cfg.Server.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestFeedURL(t *testing.T) {
	tests := []struct {
		name string
		feed FeedConfig
		want string
	}{
		{
			name: "exchange lowercased",
			feed: FeedConfig{WsHost: "wss://host", Exchange: "OKX", Symbol: "BTC-USDT"},
			want: "wss://host/ws/l2-orderbook/okx/BTC-USDT-SWAP",
		},
		{
			name: "trailing slash trimmed",
			feed: FeedConfig{WsHost: "ws://localhost:9000/", Exchange: "Deribit", Symbol: "ETH-USDT"},
			want: "ws://localhost:9000/ws/l2-orderbook/deribit/ETH-USDT-SWAP",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.feed.URL())
		})
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[feed]
symbol = "ETH-USDT"
max_idle = "30s"

[simulator]
quantity_usd = 250.0
symbols = ["ETH-USDT", "BTC-USDT"]

[redis]
enabled = true
addr = "redis.internal:6380"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values win.
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ETH-USDT", cfg.Feed.Symbol)
	assert.Equal(t, 30*time.Second, cfg.Feed.MaxIdle.Duration)
	assert.Equal(t, 250.0, cfg.Simulator.QuantityUSD)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)

	// Untouched keys keep their defaults.
	assert.Equal(t, "wss://ws.gomarket-cpp.goquant.io", cfg.Feed.WsHost)
	assert.Equal(t, 100, cfg.Simulator.WindowSize)
	assert.Equal(t, "goquant:results", cfg.Redis.Channel)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = `), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[feed]
symbol = "ETH-USDT"
`), 0o644))

	t.Setenv("GOQUANT_FEED_SYMBOL", "SOL-USDT")
	t.Setenv("GOQUANT_FEED_MAX_IDLE", "2s")
	t.Setenv("GOQUANT_SIMULATOR_WINDOW_SIZE", "42")
	t.Setenv("GOQUANT_SIMULATOR_QUANTITY_USD", "9.5")
	t.Setenv("GOQUANT_SIMULATOR_SYMBOLS", "SOL-USDT, BTC-USDT ,,ETH-USDT")
	t.Setenv("GOQUANT_SERVER_ENABLED", "false")
	t.Setenv("GOQUANT_REDIS_PASSWORD", "hunter2")
	t.Setenv("GOQUANT_SERVER_PORT", "not-a-number") // ignored, keeps default

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "SOL-USDT", cfg.Feed.Symbol, "env wins over file")
	assert.Equal(t, 2*time.Second, cfg.Feed.MaxIdle.Duration)
	assert.Equal(t, 42, cfg.Simulator.WindowSize)
	assert.Equal(t, 9.5, cfg.Simulator.QuantityUSD)
	assert.Equal(t, []string{"SOL-USDT", "BTC-USDT", "ETH-USDT"}, cfg.Simulator.Symbols)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	cfg.Feed.WsHost = "https://not-a-ws-url"
	cfg.Simulator.WindowSize = 2
	cfg.Simulator.QuantityUSD = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "ws_host")
	assert.Contains(t, err.Error(), "window_size")
	assert.Contains(t, err.Error(), "quantity_usd")
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"volatility above one", func(c *Config) { c.Simulator.Volatility = 1.5 }, "volatility"},
		{"negative fee tier", func(c *Config) { c.Simulator.FeeTier = -1 }, "fee_tier"},
		{"zero schedule steps", func(c *Config) { c.Simulator.ScheduleSteps = 0 }, "schedule_steps"},
		{"feed symbol off allow-list", func(c *Config) { c.Feed.Symbol = "DOGE-USDT" }, "symbols must include"},
		{"empty symbols", func(c *Config) { c.Simulator.Symbols = nil }, "symbols"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimitPerSec = -1 }, "rate_limit_per_sec"},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "addr"},
		{"redis enabled without channel", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Channel = ""
		}, "channel"},
		{"telegram token without chat id", func(c *Config) { c.Notify.TelegramToken = "tok" }, "telegram_chat_id"},
		{"notify channel without threshold", func(c *Config) {
			c.Notify.DiscordWebhookURL = "https://discord.test/hook"
			c.Notify.UnhealthyAfter = duration{}
		}, "unhealthy_after"},
		{"zero max idle", func(c *Config) { c.Feed.MaxIdle = duration{} }, "max_idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}

	t.Run("disabled server skips port checks", func(t *testing.T) {
		cfg := Defaults()
		cfg.Server.Enabled = false
		cfg.Server.Port = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("disabled redis skips connection checks", func(t *testing.T) {
		cfg := Defaults()
		cfg.Redis.Addr = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestDurationText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("ninety seconds")))

	out, err := duration{5 * time.Minute}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", string(out))
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "s3cret"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Notify.TelegramChatID = "-100999"
	cfg.Notify.DiscordWebhookURL = "https://discord.test/hook"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "***", red.Notify.TelegramChatID)
	assert.Equal(t, "***", red.Notify.DiscordWebhookURL)

	// The original is untouched.
	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.Equal(t, "123:abc", cfg.Notify.TelegramToken)

	// Empty secrets stay empty rather than pretending something is set.
	clean := Defaults()
	assert.Empty(t, RedactedConfig(&clean).Redis.Password)

	// Slice fields are copies.
	red.Simulator.Symbols[0] = "clobbered"
	assert.NotEqual(t, "clobbered", cfg.Simulator.Symbols[0])
}
