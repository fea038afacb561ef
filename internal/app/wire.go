package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/edgescan/internal/blob/s3"
	"github.com/alanyoungcy/edgescan/internal/cache/redis"
	"github.com/alanyoungcy/edgescan/internal/config"
	"github.com/alanyoungcy/edgescan/internal/domain"
	"github.com/alanyoungcy/edgescan/internal/engine"
	"github.com/alanyoungcy/edgescan/internal/estimator"
	"github.com/alanyoungcy/edgescan/internal/feed"
	"github.com/alanyoungcy/edgescan/internal/notify"
	"github.com/alanyoungcy/edgescan/internal/platform/polymarket"
	"github.com/alanyoungcy/edgescan/internal/position"
	"github.com/alanyoungcy/edgescan/internal/scanner"
	"github.com/alanyoungcy/edgescan/internal/sizing"
	"github.com/alanyoungcy/edgescan/internal/store/file"
	"github.com/alanyoungcy/edgescan/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Engine    *engine.Engine
	Positions *position.Store

	// Optional; nil when the backing service is not configured.
	SignalBus *redis.SignalBus
	Publisher *s3blob.Publisher
	Notifier  *notify.Notifier
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

	// --- Durable position log ---
	var (
		posLog domain.PositionLog
		audit  domain.AuditStore
	)
	switch strings.ToLower(cfg.Store.Backend) {
	case "postgres":
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

		posLog = postgres.NewPositionLog(pgClient.Pool())
		audit = postgres.NewAuditStore(pgClient.Pool())
	default:
		posLog = file.NewPositionLog(cfg.Store.Path, logger)
	}

	deps.Positions = position.NewStore(posLog, logger)
	if err := deps.Positions.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load positions: %w", err)
	}

	// --- Market data ---
	gamma := polymarket.NewGammaClient(cfg.Gamma.Host, cfg.Gamma.FetchTimeout.Duration, logger)

	// --- Redis (optional: price cache, cycle lock, signal bus) ---
	var engineOpts []engine.Option
	var prices domain.PriceSource = gamma
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

		cache := redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
		prices = feed.NewCachedPrices(cache, gamma, cfg.Redis.MaxStale.Duration, logger)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		engineOpts = append(engineOpts,
			engine.WithLockManager(redis.NewLockManager(redisClient)),
			engine.WithSignalBus(deps.SignalBus),
		)
	}
	engineOpts = append(engineOpts, engine.WithPriceSource(prices))
	if audit != nil {
		engineOpts = append(engineOpts, engine.WithAuditStore(audit))
	}

	// --- S3 blob storage (optional: cycle reports and archives) ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Publisher = s3blob.NewPublisher(s3blob.NewWriter(s3Client), audit)
	}

	// --- Core pipeline ---
	estCfg := estimator.Defaults()
	estCfg.BaseMultiplier = cfg.Estimator.BaseMultiplier
	estCfg.MaxProbability = cfg.Estimator.MaxProbability
	est := estimator.New(estCfg)
	scorer := scanner.New(scanner.Config{
		MinLiquidity:      cfg.Scanner.MinLiquidity,
		MaxPriceCeiling:   cfg.Scanner.MaxPriceCeiling,
		MinExpectedReturn: cfg.Scanner.MinExpectedReturn,
		MinDaysRemaining:  cfg.Scanner.MinDaysRemaining,
	}, est)
	sizer := sizing.New(sizing.Config{
		SizeScale:    cfg.Sizing.SizeScale,
		KellyDamping: cfg.Sizing.KellyDamping,
		MinStake:     cfg.Sizing.MinStake,
		MaxStake:     cfg.Sizing.MaxStake,
	})

	engineCfg := engine.Defaults()
	engineCfg.MaxPositions = cfg.Engine.MaxPositions
	engineCfg.MaxNewPerCycle = cfg.Engine.MaxNewPerCycle
	engineCfg.MaxHoldingDays = cfg.Engine.MaxHoldingDays
	engineCfg.TakeProfit = cfg.Engine.TakeProfit
	engineCfg.StopLoss = cfg.Engine.StopLoss

	deps.Engine = engine.New(engineCfg, gamma, scorer, sizer, deps.Positions, logger, engineOpts...)

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
