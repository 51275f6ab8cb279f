package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marcwhitfield/vaultguard/internal/cache/redis"
	"github.com/marcwhitfield/vaultguard/internal/chain"
	"github.com/marcwhitfield/vaultguard/internal/config"
	"github.com/marcwhitfield/vaultguard/internal/domain"
	"github.com/marcwhitfield/vaultguard/internal/health"
	"github.com/marcwhitfield/vaultguard/internal/monitor"
	"github.com/marcwhitfield/vaultguard/internal/notify"
	"github.com/marcwhitfield/vaultguard/internal/service"
	"github.com/marcwhitfield/vaultguard/internal/store/postgres"
	"github.com/marcwhitfield/vaultguard/internal/txmgr"
)

// Dependencies bundles every component the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Positions domain.PositionStore
	TxRecords domain.TxRecordStore

	// Caches
	Prices domain.PriceSource
	Locks  domain.LockManager

	// Chain
	Provider *chain.EthProvider
	Signer   *chain.Signer

	// Services
	Executor *txmgr.Manager
	Monitor  *monitor.Monitor
	Loans    *service.LoanService

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
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
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Positions = postgres.NewPositionStore(pool)
	deps.TxRecords = postgres.NewTxRecordStore(pool)

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

	deps.Prices = redis.NewPriceCache(redisClient, cfg.Monitor.MaxPriceAge.Duration)
	deps.Locks = redis.NewLockManager(redisClient)

	// --- Chain ---
	provider, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, provider.Close)
	deps.Provider = provider

	// The signer is optional: read-only monitoring works without one, and
	// the execution manager reports ErrSignerNotConfigured on submission.
	if cfg.Chain.PrivateKey != "" || cfg.Chain.EncryptedKeyPath != "" {
		keyHex, err := chain.LoadKey(chain.KeyConfig{
			RawPrivateKey:    cfg.Chain.PrivateKey,
			EncryptedKeyPath: cfg.Chain.EncryptedKeyPath,
			KeyPassword:      cfg.Chain.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load signing key: %w", err)
		}
		signer, err := chain.NewSigner(keyHex, cfg.Chain.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
		logger.InfoContext(ctx, "signer configured",
			slog.String("component", "wire"),
			slog.String("address", signer.Address().Hex()),
		)
	}

	// --- Execution manager ---
	var execSigner txmgr.CallSigner
	if deps.Signer != nil {
		execSigner = deps.Signer
	}
	deps.Executor = txmgr.New(provider, execSigner, deps.TxRecords, txmgr.Config{
		MaxRetries:          cfg.Executor.MaxRetries,
		RetryDelay:          cfg.Executor.RetryDelay.Duration,
		ConfirmationTimeout: cfg.Executor.ConfirmationTimeout.Duration,
		PollInterval:        cfg.Executor.PollInterval.Duration,
		GasMultiplier:       cfg.Executor.GasMultiplier,
	}, logger)

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
	minSeverity := domain.RiskLevel(strings.ToLower(cfg.Notify.MinSeverity))
	deps.Notifier = notify.NewNotifier(senders, minSeverity, logger)

	// --- Monitor + remediation ---
	evaluator := health.NewEvaluator(cfg.Monitor.WarningRatio, cfg.Monitor.CriticalRatio)

	var remediator *monitor.Remediator
	if cfg.Monitor.AutoTopUpEnabled && deps.Signer != nil {
		remediator = monitor.NewRemediator(
			deps.Executor,
			provider,
			deps.Positions,
			deps.Notifier,
			evaluator,
			cfg.Chain.LendingContract,
			cfg.Monitor.AutoTopUpTarget,
			logger,
		)
	}

	// The remediation marker must outlive one full confirmation wait plus
	// a couple of status polls, so a crashed cycle cannot block the
	// position forever.
	lockTTL := cfg.Executor.ConfirmationTimeout.Duration + 2*cfg.Executor.PollInterval.Duration

	deps.Monitor = monitor.New(
		deps.Positions,
		deps.Prices,
		deps.Notifier,
		deps.Locks,
		remediator,
		monitor.Config{
			CheckInterval:      cfg.Monitor.CheckInterval.Duration,
			AutoTopUpEnabled:   cfg.Monitor.AutoTopUpEnabled,
			AutoTopUpThreshold: cfg.Monitor.AutoTopUpThreshold,
			AutoTopUpTarget:    cfg.Monitor.AutoTopUpTarget,
			WarningRatio:       cfg.Monitor.WarningRatio,
			CriticalRatio:      cfg.Monitor.CriticalRatio,
			LockTTL:            lockTTL,
		},
		logger,
	)

	deps.Loans = service.NewLoanService(
		deps.Positions,
		deps.Prices,
		deps.Executor,
		evaluator,
		cfg.Chain.LendingContract,
		logger,
	)

	return deps, cleanup, nil
}
