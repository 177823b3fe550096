package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BTCSETTLE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BTCSETTLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Factory / Relay ──
	setStr(&cfg.Factory.ID, "BTCSETTLE_FACTORY_ID")
	setStr(&cfg.Relay.VerifierID, "BTCSETTLE_RELAY_VERIFIER_ID")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BTCSETTLE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BTCSETTLE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BTCSETTLE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BTCSETTLE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BTCSETTLE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BTCSETTLE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BTCSETTLE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BTCSETTLE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BTCSETTLE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BTCSETTLE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BTCSETTLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BTCSETTLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BTCSETTLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BTCSETTLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BTCSETTLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BTCSETTLE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BTCSETTLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BTCSETTLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "BTCSETTLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BTCSETTLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BTCSETTLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BTCSETTLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BTCSETTLE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BTCSETTLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BTCSETTLE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BTCSETTLE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BTCSETTLE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BTCSETTLE_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateLimitSeconds, "BTCSETTLE_SERVER_RATE_LIMIT_SECONDS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BTCSETTLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BTCSETTLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BTCSETTLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BTCSETTLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BTCSETTLE_MODE")
	setStr(&cfg.LogLevel, "BTCSETTLE_LOG_LEVEL")
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
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
