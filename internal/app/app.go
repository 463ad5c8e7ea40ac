package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chainradar/internal/alerting"
	"chainradar/internal/catalog"
	"chainradar/internal/chains"
	"chainradar/internal/config"
	"chainradar/internal/portfolio"
	"chainradar/internal/pricing"
	"chainradar/internal/scheduler"
	"chainradar/internal/server"
	"chainradar/internal/service"
	"chainradar/internal/storage"
	"chainradar/internal/telegram"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newRegistry 根据配置组装各链的余额读取器。
func (a *App) newRegistry() chains.Registry {
	cfg := a.Config.Chains
	registry := chains.Registry{}
	for _, fetcher := range []chains.Fetcher{
		chains.NewEVM(chains.EVMOptions{
			RPCURL:  cfg.EVM.RPCURL,
			Timeout: cfg.EVM.RequestTimeout,
		}, a.Logger),
		chains.NewBTC(chains.BTCOptions{
			BaseURL: cfg.BTC.BaseURL,
			Timeout: cfg.BTC.RequestTimeout,
		}, a.Logger),
		chains.NewSOL(chains.SOLOptions{
			RPCURL:  cfg.SOL.BaseURL,
			Timeout: cfg.SOL.RequestTimeout,
		}, a.Logger),
		chains.NewTON(chains.TONOptions{
			BaseURL: cfg.TON.BaseURL,
			APIKey:  cfg.TON.APIKey,
			Timeout: cfg.TON.RequestTimeout,
		}, a.Logger),
	} {
		registry[fetcher.Chain()] = fetcher
	}
	return registry
}

// newPriceService builds the price service on top of the configured cache
// backend. The returned closer releases the Redis connection when that
// backend is selected.
func (a *App) newPriceService(ctx context.Context) (*pricing.Service, func(), error) {
	var cache pricing.Cache
	closer := func() {}

	switch a.Config.Cache.Backend {
	case "redis":
		redisCache, err := pricing.NewRedisCache(ctx, a.Config.Cache.Redis.Addr, a.Config.Cache.Redis.Password, a.Config.Cache.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		cache = redisCache
		closer = func() { _ = redisCache.Close() }
	case "", "memory":
		cache = pricing.NewMemoryCache()
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", a.Config.Cache.Backend)
	}

	provider := pricing.NewCoinGecko(pricing.CoinGeckoOptions{
		BaseURL: a.Config.Pricing.BaseURL,
		APIKey:  a.Config.Pricing.APIKey,
		Timeout: a.Config.Pricing.RequestTimeout,
	}, a.Logger)

	svc := pricing.NewService(pricing.ServiceOptions{
		Assets: a.Config.Pricing.Assets,
		TTL:    a.Config.Pricing.TTL,
	}, cache, provider, a.Logger)

	return svc, closer, nil
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, cfg.AppURL, cfg.SendTimeout, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the API server and, when enabled, the alert evaluation loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 必须配置")
	}
	defer closeStore()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialise schema: %w", err)
	}

	prices, closePrices, err := a.newPriceService(ctx)
	if err != nil {
		return err
	}
	defer closePrices()

	registry := a.newRegistry()
	aggregator := portfolio.NewAggregator(registry, prices, a.Logger)
	cat := catalog.New(a.Config.Catalog.Path)
	notifier := a.newNotifier()
	validator := telegram.NewValidator(a.Config.Telegram.BotToken, a.Config.Telegram.MaxAuthAge)

	srv := server.New(a.Config.Server, server.Options{
		Users:    store,
		Wallets:  store,
		Alerts:   store,
		Builder:  aggregator,
		Catalog:  cat,
		Auth:     validator,
		Alerting: a.Config.Alerting,
		Telegram: a.Config.Telegram,
		Logger:   a.Logger,
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(ctx)
	})

	if a.Config.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)
		svc := service.New(sched, store, prices, cat, notifier, store, a.Config.Scheduler.AdvisoryLockKey, a.Logger)
		group.Go(func() error {
			return svc.Run(ctx)
		})
	} else {
		a.Logger.Warn().Msg("scheduler disabled; alerts will not be evaluated by this instance")
	}

	a.Logger.Info().Msg("starting chainradar")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("chainradar stopped")
	return nil
}
