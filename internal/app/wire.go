package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/liqguard/internal/blob/s3"
	"github.com/alanyoungcy/liqguard/internal/cache/memory"
	"github.com/alanyoungcy/liqguard/internal/cache/redis"
	"github.com/alanyoungcy/liqguard/internal/catalog"
	"github.com/alanyoungcy/liqguard/internal/config"
	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/notify"
	"github.com/alanyoungcy/liqguard/internal/platform/insure"
	"github.com/alanyoungcy/liqguard/internal/server/handler"
	"github.com/alanyoungcy/liqguard/internal/service"
	"github.com/alanyoungcy/liqguard/internal/session"
	"github.com/alanyoungcy/liqguard/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Optional infrastructure
// is nil when not configured.
type Dependencies struct {
	Backend *insure.Client
	Markets *catalog.Store
	SKUs    *catalog.SKUCatalog
	Wallet  session.Wallet

	// Caches and signalling
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus
	EventLog     service.EventLog
	SessionStore domain.SessionStore

	// Persistence
	VerificationStore domain.VerificationStore
	AuditStore        domain.AuditStore
	Archive           domain.EvidenceArchive

	Notifier *notify.Notifier

	// Health probes keyed by dependency name.
	Checks map[string]handler.Check
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
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Checks: map[string]handler.Check{}}

	// --- Insurance backend ---
	var partner *crypto.PartnerAuth
	if cfg.API.PartnerKey != "" {
		partner = &crypto.PartnerAuth{Key: cfg.API.PartnerKey, Secret: cfg.API.PartnerSecret}
	}
	deps.Backend = insure.NewClient(insure.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout.Duration,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Partner:           partner,
		Logger:            logger,
	})

	// --- Catalogs ---
	markets := catalog.DefaultMarkets()
	if cfg.Catalog.MarketsFile != "" {
		m, err := catalog.LoadMarkets(cfg.Catalog.MarketsFile)
		if err != nil {
			return fail("markets catalog", err)
		}
		markets = m
	}
	deps.Markets = catalog.NewStore(markets)
	deps.SKUs = catalog.NewSKUCatalog(deps.Backend, cfg.Catalog.SKUCacheTTL.Duration, logger)

	// --- Server wallet (optional) ---
	if cfg.Wallet.Configured() {
		key, err := crypto.ResolveKey(crypto.KeySource{
			RawPrivateKey: cfg.Wallet.PrivateKey,
			SealedKeyPath: cfg.Wallet.SealedKeyPath,
			Password:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail("wallet key", err)
		}
		signer, err := crypto.NewSigner(key)
		if err != nil {
			return fail("wallet signer", err)
		}
		deps.Wallet = crypto.NewLocalWallet(signer)
		logger.InfoContext(ctx, "server wallet loaded", slog.String("address", signer.Address().Hex()))
	}

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.VerificationStore = postgres.NewVerificationStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis, or in-process stand-ins ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus := redis.NewSignalBus(redisClient)
		deps.SignalBus = bus
		deps.EventLog = bus
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		if cfg.Wizard.PersistSessions {
			deps.SessionStore = redis.NewSessionStore(redisClient, cfg.Wizard.SessionTTL.Duration)
		}
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = memory.NewBus()
		deps.RateLimiter = memory.NewRateLimiter()
	}

	// --- S3 evidence archive ---
	if cfg.S3.Enabled {
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
			return fail("s3", err)
		}
		deps.Archive = s3blob.NewEvidenceArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIBase,
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

// ServerWallet is the wallet API wizards may sign in with: the configured
// wallet when wizard.server_signin is set, otherwise none.
func ServerWallet(cfg *config.Config, deps *Dependencies) session.Wallet {
	if !cfg.Wizard.ServerSignIn || deps.Wallet == nil {
		return nil
	}
	return deps.Wallet
}

// NewWizardService builds the wizard service over deps. wallet, when set,
// signs wizards in that have no token of their own.
func NewWizardService(cfg *config.Config, deps *Dependencies, wallet session.Wallet, logger *slog.Logger) *service.WizardService {
	opts := []service.Option{
		service.WithRateLimiter(deps.RateLimiter),
		service.WithSignalBus(deps.SignalBus),
		service.WithNotifier(deps.Notifier),
	}
	if wallet != nil {
		opts = append(opts, service.WithWallet(wallet))
	}
	if deps.LockManager != nil {
		opts = append(opts, service.WithLocks(deps.LockManager))
	}
	if deps.EventLog != nil {
		opts = append(opts, service.WithEventLog(deps.EventLog))
	}
	if deps.SessionStore != nil {
		opts = append(opts, service.WithSessionStore(deps.SessionStore))
	}
	if deps.VerificationStore != nil {
		opts = append(opts, service.WithVerificationStore(deps.VerificationStore))
	}
	if deps.AuditStore != nil {
		opts = append(opts, service.WithAuditStore(deps.AuditStore))
	}
	if deps.Archive != nil {
		opts = append(opts, service.WithEvidenceArchive(deps.Archive))
	}

	return service.NewWizardService(
		service.WizardConfig{
			SessionTTL:    cfg.Wizard.SessionTTL.Duration,
			SubmitLimit:   cfg.Wizard.SubmitLimit,
			SubmitWindow:  cfg.Wizard.SubmitWindow.Duration,
			SubmitLockTTL: cfg.Wizard.SubmitLockTTL.Duration,
			Language:      cfg.Wizard.Language,
		},
		deps.Markets,
		deps.SKUs,
		deps.Backend,
		deps.Backend,
		crypto.SHA256{},
		logger,
		opts...,
	)
}
