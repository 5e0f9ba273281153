package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/access"
	s3blob "github.com/0xBased-lang/kektech-backend/internal/blob/s3"
	"github.com/0xBased-lang/kektech-backend/internal/cache/redis"
	"github.com/0xBased-lang/kektech-backend/internal/config"
	"github.com/0xBased-lang/kektech-backend/internal/crypto"
	"github.com/0xBased-lang/kektech-backend/internal/domain"
	"github.com/0xBased-lang/kektech-backend/internal/notify"
	"github.com/0xBased-lang/kektech-backend/internal/payee"
	"github.com/0xBased-lang/kektech-backend/internal/settlement"
	"github.com/0xBased-lang/kektech-backend/internal/store/postgres"
)

// ledgerPayeeAccount receives fee shares when no external payee service is
// configured.
const ledgerPayeeAccount = "fee-pool"

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore  domain.MarketStore
	BetStore     domain.BetStore
	DisputeStore domain.DisputeStore
	BalanceStore domain.BalanceStore
	AuditStore   domain.AuditStore

	// Caches (nil when Redis is disabled)
	OddsCache   domain.OddsCache
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (nil unless archiving is enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Settlement engine
	Settlement *settlement.Service

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that require object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled || cfg.Mode == "archive"
}

// tokensToUnits converts a whole-token config value to micro-token units.
func tokensToUnits(tokens float64) int64 {
	return int64(math.Round(tokens * float64(domain.UnitsPerToken)))
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
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
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.DisputeStore = postgres.NewDisputeStore(pool)
	deps.BalanceStore = postgres.NewBalanceStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis (optional) ---
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

		deps.OddsCache = redis.NewOddsCache(redisClient)
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (only when archiving is on) ---
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.MarketStore,
			deps.BetStore,
			deps.DisputeStore,
			deps.AuditStore,
		)
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

	// --- Fee payee ---
	var feePayee domain.FeePayee
	if cfg.Payee.URL != "" {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:     cfg.Payee.KeySecret,
			EncryptedPath: cfg.Payee.KeySecretFile,
			Password:      cfg.Payee.KeySecretPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: payee secret: %w", err)
		}
		auth := &crypto.HMACAuth{KeyID: cfg.Payee.KeyID, Secret: secret}
		client, err := payee.New(cfg.Payee.URL, auth, cfg.Payee.Timeout.Duration, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: payee: %w", err)
		}
		feePayee = client
	} else {
		feePayee = payee.NewLedger(deps.BalanceStore, ledgerPayeeAccount, logger)
	}

	// --- Settlement engine ---
	checker := access.New(cfg.Access.Admins, cfg.Access.Resolvers, cfg.Access.Backends)

	params := settlement.Params{
		MinBond:              tokensToUnits(cfg.Fees.MinBondTokens),
		MaxBond:              tokensToUnits(cfg.Fees.MaxBondTokens),
		MinBondFeeBps:        cfg.Fees.MinBondFeeBps,
		MaxBondFeeBps:        cfg.Fees.MaxBondFeeBps,
		MaxVoluntary:         tokensToUnits(cfg.Fees.MaxVoluntaryTokens),
		MaxVoluntaryBonusBps: cfg.Fees.MaxVoluntaryBonusBps,
		MaxTradingFeeBps:     cfg.Fees.MaxTradingFeeBps,
		VoluntaryTaxBps:      cfg.Fees.VoluntaryTaxBps,

		WhaleCapBps: cfg.Market.WhaleCapBps,
		MinimumBet:  tokensToUnits(cfg.Market.MinimumBetTokens),
		MaximumBet:  tokensToUnits(cfg.Market.MaximumBetTokens),

		MinDisputeBond: tokensToUnits(cfg.Resolution.MinDisputeBondTokens),
		DisputeWindow:  cfg.Resolution.DisputeWindow.Duration,
		EmergencyDelay: cfg.Resolution.EmergencyDelay.Duration,
		ClaimTimeout:   cfg.Resolution.ClaimTimeout.Duration,
	}

	clock := domain.SystemClock{}

	opts := settlement.Options{
		Locks:   deps.LockManager,
		Odds:    deps.OddsCache,
		Markets: deps.MarketCache,
		Alerter: deps.Notifier,
	}
	if deps.SignalBus != nil {
		opts.Events = settlement.NewPublisher(deps.SignalBus, clock, logger)
	}

	deps.Settlement = settlement.NewService(
		params,
		checker,
		feePayee,
		deps.BalanceStore,
		clock,
		settlement.Stores{
			Markets:  deps.MarketStore,
			Bets:     deps.BetStore,
			Disputes: deps.DisputeStore,
			Audit:    deps.AuditStore,
		},
		opts,
		logger,
	)

	hydrateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := deps.Settlement.Hydrate(hydrateCtx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: hydrate settlement: %w", err)
	}

	return deps, cleanup, nil
}
