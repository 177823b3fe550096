package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/btcsettle/btcsettle/internal/blob/s3"
	"github.com/btcsettle/btcsettle/internal/btcproof"
	"github.com/btcsettle/btcsettle/internal/cache/redis"
	"github.com/btcsettle/btcsettle/internal/config"
	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/factory"
	"github.com/btcsettle/btcsettle/internal/notify"
	"github.com/btcsettle/btcsettle/internal/store/postgres"
	"github.com/btcsettle/btcsettle/internal/token"
	"github.com/btcsettle/btcsettle/internal/treasury"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function. In
// memory mode the store, cache, blob, and bus fields stay nil.
type Dependencies struct {
	// Protocol core
	Factory *factory.Factory
	Relay   *btcproof.HeaderRelay
	Clock   domain.Clock

	// Stores
	JournalStore domain.JournalStore
	PairStore    domain.PairStore

	// Caches
	PairCache   domain.PairCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.ProofArchiver

	// Notifications
	Notifier *notify.Notifier
}

// durable returns true for modes that require postgres, redis, and S3.
func durable(mode string) bool {
	return mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Clock: domain.SystemClock{},
	}

	// --- Protocol core: ledgers, treasuries, relay, factory ---
	f := factory.New(domain.Account(common.HexToAddress(cfg.Factory.ID)), deps.Clock)
	for _, asset := range cfg.Assets {
		ledger := token.NewLedger()
		for _, g := range asset.Genesis {
			amount, ok := new(big.Int).SetString(g.Amount, 10)
			if !ok {
				cleanup()
				return nil, nil, fmt.Errorf("wire: asset %s: bad genesis amount %q", asset.Symbol, g.Amount)
			}
			account := domain.Account(common.HexToAddress(g.Account))
			if err := ledger.Mint(account, amount); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: asset %s: genesis mint: %w", asset.Symbol, err)
			}
		}
		id := domain.AssetID(common.HexToAddress(asset.ID))
		f.RegisterTreasury(id, treasury.New(id, asset.Decimals, ledger, deps.Clock))
		f.EnableAsset(id)
	}

	relay := btcproof.NewHeaderRelay()
	f.RegisterVerifier(
		domain.VerifierID(common.HexToAddress(cfg.Relay.VerifierID)),
		btcproof.NewVerifier(relay),
	)
	deps.Factory = f
	deps.Relay = relay

	if !durable(cfg.Mode) {
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.JournalStore = postgres.NewJournalStore(pool)
	deps.PairStore = postgres.NewPairStore(pool)

	// --- Redis ---
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

	deps.PairCache = redis.NewPairCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	closers = append(closers, func() { _ = s3Client.Close() })

	deps.BlobWriter = s3blob.NewWriter(s3Client)
	deps.BlobReader = s3blob.NewReader(s3Client)
	deps.Archiver = s3blob.NewProofArchive(deps.BlobWriter)

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

	return deps, cleanup, nil
}
