// Package config defines the top-level configuration for the settlement
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BTCSETTLE_* environment
// variables.
type Config struct {
	Factory  FactoryConfig  `toml:"factory"`
	Assets   []AssetConfig  `toml:"assets"`
	Relay    RelayConfig    `toml:"relay"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// FactoryConfig fixes the factory identity the pair derivation runs under.
// Changing it changes every derived pair address, so it is set once per
// deployment.
type FactoryConfig struct {
	ID string `toml:"id"`
}

// AssetConfig declares one supported collateral asset and its genesis
// balances. Genesis balances exist so a fresh in-memory deployment has
// collateral to settle with; a durable deployment applies them only on first
// start.
type AssetConfig struct {
	Symbol   string          `toml:"symbol"`
	ID       string          `toml:"id"`
	Decimals uint8           `toml:"decimals"`
	Genesis  []GenesisConfig `toml:"genesis"`
}

// GenesisConfig is one genesis balance: account and amount in the asset's
// base units.
type GenesisConfig struct {
	Account string `toml:"account"`
	Amount  string `toml:"amount"`
}

// RelayConfig names the identity the Bitcoin payment verifier registers
// under. Pair terms reference it.
type RelayConfig struct {
	VerifierID string `toml:"verifier_id"`
}

// PostgresConfig holds PostgreSQL connection parameters for the journal and
// pair stores.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the proof
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. An empty APIKey disables
// authentication; a zero RateLimit disables rate limiting.
type ServerConfig struct {
	Enabled          bool     `toml:"enabled"`
	Port             int      `toml:"port"`
	CORSOrigins      []string `toml:"cors_origins"`
	APIKey           string   `toml:"api_key"`
	RateLimit        int      `toml:"rate_limit"`
	RateLimitSeconds int      `toml:"rate_limit_seconds"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Factory: FactoryConfig{
			ID: "0x00000000000000000000000000000000b7c5e77e",
		},
		Relay: RelayConfig{
			VerifierID: "0x0000000000000000000000000000000000b7c0de",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "btcsettle",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "btcsettle-proofs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:          true,
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:        120,
			RateLimitSeconds: 60,
		},
		Notify: NotifyConfig{
			Events: []string{"pair_created", "exercise_requested", "exercise_executed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode. "memory" runs
// the protocol without postgres, redis, or S3, for development and testing.
var validModes = map[string]bool{
	"full":   true,
	"memory": true,
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

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, memory)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !common.IsHexAddress(c.Factory.ID) {
		errs = append(errs, fmt.Sprintf("factory: id %q is not a hex address", c.Factory.ID))
	}
	if !common.IsHexAddress(c.Relay.VerifierID) {
		errs = append(errs, fmt.Sprintf("relay: verifier_id %q is not a hex address", c.Relay.VerifierID))
	}

	if len(c.Assets) == 0 {
		errs = append(errs, "assets: at least one collateral asset must be configured")
	}
	seen := map[string]bool{}
	for i, a := range c.Assets {
		if a.Symbol == "" {
			errs = append(errs, fmt.Sprintf("assets[%d]: symbol must not be empty", i))
		}
		if !common.IsHexAddress(a.ID) {
			errs = append(errs, fmt.Sprintf("assets[%d]: id %q is not a hex address", i, a.ID))
		} else {
			key := common.HexToAddress(a.ID).Hex()
			if seen[key] {
				errs = append(errs, fmt.Sprintf("assets[%d]: duplicate asset id %s", i, key))
			}
			seen[key] = true
		}
		if a.Decimals > 18 {
			errs = append(errs, fmt.Sprintf("assets[%d]: decimals must be 0-18, got %d", i, a.Decimals))
		}
		for j, g := range a.Genesis {
			if !common.IsHexAddress(g.Account) {
				errs = append(errs, fmt.Sprintf("assets[%d].genesis[%d]: account %q is not a hex address", i, j, g.Account))
			}
			if g.Amount == "" {
				errs = append(errs, fmt.Sprintf("assets[%d].genesis[%d]: amount must not be empty", i, j))
			}
		}
	}

	durable := strings.ToLower(c.Mode) == "full"
	if durable {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitSeconds <= 0 {
			errs = append(errs, "server: rate_limit_seconds must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
