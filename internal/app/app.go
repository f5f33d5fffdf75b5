package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/aggregator"
	"github.com/aman-zulfiqar/arena-terminal/internal/cache"
	"github.com/aman-zulfiqar/arena-terminal/internal/config"
	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/flags"
	"github.com/aman-zulfiqar/arena-terminal/internal/ledger"
	"github.com/aman-zulfiqar/arena-terminal/internal/observability"
	"github.com/aman-zulfiqar/arena-terminal/internal/pricing"
	"github.com/aman-zulfiqar/arena-terminal/internal/rpc"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ aggregator.Overrides = (*flags.Store)(nil)

// Options selects the optional parts of the runtime a command needs.
type Options struct {
	// Sinks turns on the Redis, ClickHouse and Postgres sinks when their
	// addresses are configured.
	Sinks bool
	// Extra sinks appended after the configured ones, e.g. the websocket hub.
	Extra []storage.LaunchSink
}

// App is the wired launch pipeline shared by every command.
type App struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Metrics    *observability.Metrics
	RPC        *rpc.Client
	Ledger     *ledger.EVM
	Quotes     *pricing.QuoteCache
	Aggregator *aggregator.Aggregator

	Redis     *redis.Client
	Cache     *cache.RedisCache
	PubSub    *cache.PubSubManager
	Snapshots *cache.ClickHouseStore
	Registry  *postgres.DeploymentStore
	// Flags holds runtime overrides for the failure policy and progress cap.
	Flags *flags.Store

	closers []func()
}

// Build dials the node and every configured backend and returns the wired
// aggregator. Close releases whatever was opened, also on error.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics("", nil),
	}

	client, err := rpc.Dial(ctx, rpc.ClientConfig{
		URL:          cfg.RPCUrl,
		Timeout:      cfg.RPCTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RPCRateLimit,
		Observer:     a.Metrics.RecordRPCCall,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	a.RPC = client
	a.onClose(client.Close)

	a.Ledger, err = ledger.NewEVM(ledger.EVMConfig{
		Source:       client,
		TokenManager: constants.TokenManagerAddress,
		PairFactory:  constants.PairFactoryAddress,
		MaxLogSpan:   cfg.RPCMaxLogSpan,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	var (
		sinks     []storage.LaunchSink
		creations []storage.CreationSink
	)
	if cfg.RedisAddr != "" {
		if err := a.openRedis(ctx); err != nil {
			a.Close()
			return nil, err
		}
		if opts.Sinks {
			sinks = append(sinks, a.Cache, a.PubSub)
		}
	}

	if opts.Sinks && cfg.ClickHouseAddr != "" {
		store, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Snapshots = store
		a.onClose(func() { _ = store.Close() })
		sinks = append(sinks, store)
	}

	if opts.Sinks && cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.onClose(pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Registry = postgres.NewDeploymentStore(pool)
		sinks = append(sinks, a.Registry)
		creations = append(creations, a.Registry)
	}
	sinks = append(sinks, opts.Extra...)

	a.Quotes = pricing.NewQuoteCache(pricing.QuoteCacheConfig{
		Source:    pricing.NewClient(cfg.PriceAPIURL, ""),
		AssetID:   cfg.PriceAssetID,
		TTL:       cfg.PriceTTL,
		Bootstrap: constants.BootstrapNativeUSD,
		OnFetch:   a.onQuote,
		Logger:    logger,
	})

	aggCfg := aggregator.Config{
		Ledger:          a.Ledger,
		Quotes:          a.Quotes,
		CacheTTL:        cfg.CacheTTL,
		ScanWindow:      cfg.ScanWindow,
		HolderWindow:    cfg.HolderWindow,
		ConfirmationLag: cfg.ConfirmationLag,
		MaxLaunches:     cfg.MaxLaunches,
		MaxProgress:     cfg.MaxProgress,
		EnrichWorkers:   cfg.EnrichWorkers,
		CallTimeout:     cfg.CallTimeout,
		RefreshTimeout:  cfg.RefreshTimeout,
		FailurePolicy:   cfg.FailurePolicy,
		LogoURLTemplate: cfg.LogoURLTemplate,
		Sinks:           sinks,
		CreationSinks:   creations,
		Metrics:         a.Metrics,
		Logger:          logger,
	}
	// A nil *flags.Store must not become a non-nil interface
	if a.Flags != nil {
		aggCfg.Overrides = a.Flags
	}
	a.Aggregator, err = aggregator.New(aggCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init aggregator: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"rpc":         cfg.RPCUrl,
		"sinks":       len(sinks),
		"cache_ttl":   cfg.CacheTTL,
		"scan_blocks": cfg.ScanWindow,
	}).Info("launch pipeline ready")

	return a, nil
}

// openRedis connects the shared client used by the cache and the pub/sub feed.
func (a *App) openRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr: a.Config.RedisAddr,
		DB:   0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis %s: %w", a.Config.RedisAddr, err)
	}

	rc, err := cache.NewRedisCacheFromClient(client, a.Config.PriceTTL)
	if err != nil {
		_ = client.Close()
		return err
	}

	a.Redis = client
	a.Cache = rc
	a.PubSub = cache.NewPubSubManager(client, a.Logger)
	a.Flags, err = flags.NewStore(client)
	if err != nil {
		_ = client.Close()
		return err
	}
	a.onClose(func() { _ = client.Close() })
	return nil
}

// onQuote records every quote fetch and mirrors successful ones to Redis so
// the subscriber can read the price without calling the quote API.
func (a *App) onQuote(price float64, err error) {
	a.Metrics.RecordQuoteFetch(price, err)
	if err != nil || a.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Cache.UpdatePrice(ctx, a.Config.PriceAssetID, price); err != nil {
		a.Logger.WithError(err).Warn("failed to mirror quote to redis")
	}
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
