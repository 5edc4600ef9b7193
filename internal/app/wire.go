package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/nvoloshin/swapbot/internal/blob/s3"
	"github.com/nvoloshin/swapbot/internal/cache/redis"
	"github.com/nvoloshin/swapbot/internal/chain"
	"github.com/nvoloshin/swapbot/internal/config"
	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/jupiter"
	"github.com/nvoloshin/swapbot/internal/keyvault"
	"github.com/nvoloshin/swapbot/internal/notify"
	"github.com/nvoloshin/swapbot/internal/store/postgres"
	"github.com/nvoloshin/swapbot/internal/swap"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	WalletStore      domain.WalletStore
	TransactionStore *postgres.TransactionStore
	AuditStore       domain.AuditStore

	// Caches
	PriceCache    domain.PriceCache
	DecimalsCache domain.DecimalsCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager

	// Chain and aggregator
	ChainClient *chain.Client
	Decimals    *chain.DecimalsResolver
	Jupiter     *jupiter.Client
	PriceSource *jupiter.PriceClient
	Vault       *keyvault.Vault

	// Executors
	SwapExecutor     *swap.Executor
	TransferExecutor *swap.TransferExecutor

	// Blob storage
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter
	Archiver    domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that require object storage.
func needsS3(cfg *config.Config) bool {
	if !cfg.Archive.Enabled {
		return false
	}
	switch cfg.Mode {
	case "archive", "full":
		return true
	default:
		return false
	}
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

	deps := &Dependencies{}

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
	deps.WalletStore = postgres.NewWalletStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

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

	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Price.CacheTTL.Duration)
	deps.DecimalsCache = redis.NewDecimalsCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Chain ---
	deps.ChainClient = chain.NewClient(chain.ClientConfig{
		Endpoint:          cfg.Solana.RPCURL,
		WSEndpoint:        cfg.Solana.WSURL,
		Timeout:           cfg.Solana.RequestTimeout.Duration,
		Commitment:        cfg.Solana.Commitment,
		SubmitAttempts:    cfg.Solana.SubmitAttempts,
		BlockhashAttempts: cfg.Solana.BlockhashAttempts,
		ConfirmAttempts:   cfg.Solana.ConfirmAttempts,
		ConfirmInterval:   cfg.Solana.ConfirmInterval.Duration,
	}, logger)
	deps.Decimals = chain.NewDecimalsResolver(deps.ChainClient, deps.DecimalsCache, logger)

	// --- Aggregator ---
	deps.Jupiter = jupiter.NewClient(jupiter.ClientConfig{
		BaseURL:            cfg.Jupiter.BaseURL,
		APIKey:             cfg.Jupiter.ApiKey,
		PlatformFeeBps:     cfg.Jupiter.PlatformFeeBps,
		PlatformFeeAccount: cfg.Jupiter.PlatformFeeAccount,
		Timeout:            cfg.Jupiter.RequestTimeout.Duration,
	}, logger)
	deps.PriceSource = jupiter.NewPriceClient(jupiter.PriceClientConfig{
		BaseURL: cfg.Jupiter.PriceURL,
		APIKey:  cfg.Jupiter.ApiKey,
		Timeout: cfg.Jupiter.RequestTimeout.Duration,
	})

	// --- Key vault and executors ---
	deps.Vault = keyvault.New(cfg.Vault.Passphrase)

	deps.SwapExecutor = swap.NewExecutor(deps.Jupiter, deps.ChainClient, deps.Decimals, swap.Config{
		Slippage: swap.SlippagePolicy{
			DefaultPct: cfg.Swap.DefaultSlippagePct,
			Overrides:  cfg.Swap.SlippageOverrides,
		},
		SellBuffer:  cfg.Swap.SellBuffer,
		MaxAttempts: cfg.Swap.MaxAttempts,
	}, logger)
	deps.TransferExecutor = swap.NewTransferExecutor(deps.ChainClient, deps.Decimals, logger)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg) {
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

		writer := s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobWriter = writer
		deps.BlobReader = reader
		deps.BlobDeleter = reader // same type implements BlobDeleter
		deps.Archiver = s3blob.NewArchiver(writer, reader, deps.TransactionStore, deps.AuditStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
