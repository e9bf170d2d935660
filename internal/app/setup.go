package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/internal/ledger"
	"github.com/mselser95/basis-arb/internal/monitor"
	"github.com/mselser95/basis-arb/internal/notify"
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/internal/storage"
	"github.com/mselser95/basis-arb/pkg/cache"
	"github.com/mselser95/basis-arb/pkg/config"
	"github.com/mselser95/basis-arb/pkg/healthprobe"
	"github.com/mselser95/basis-arb/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	metaCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	gw, err := setupGateway(cfg, logger, metaCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup gateway: %w", err)
	}

	store, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	led := ledger.New(ledger.Config{
		Store:  store,
		LotMax: cfg.LotMax,
		Logger: logger,
	})

	engine := spread.New(spread.Config{
		SpreadIn:  cfg.SpreadIn,
		SpreadOut: cfg.SpreadOut,
		Logger:    logger,
	})

	notifier := setupNotifier(cfg, logger)

	scheduler := monitor.New(monitor.Config{
		Pairs:              monitorPairs(cfg),
		Gateway:            gw,
		Engine:             engine,
		Ledger:             led,
		Spreads:            store,
		Notifier:           notifier,
		Logger:             logger,
		LotMin:             cfg.LotMin,
		LotMax:             cfg.LotMax,
		CheckInterval:      cfg.CheckInterval,
		ErrorBackoff:       cfg.ErrorBackoff,
		GatewayCallTimeout: cfg.GatewayCallTimeout,
		BookDepthLimit:     cfg.BookDepthLimit,
		AutoTrade:          cfg.AutoTrade,
	})

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Positions:     led,
		Spreads:       store,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		cache:         metaCache,
		storage:       store,
		ledger:        led,
		notifier:      notifier,
		scheduler:     scheduler,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupGateway(cfg *config.Config, logger *zap.Logger, metaCache cache.Cache) (gateway.Gateway, error) {
	rest, err := gateway.NewREST(gateway.Config{
		Exchanges: cfg.Exchanges,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return gateway.NewCached(rest, metaCache), nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		err = pgStorage.EnsureSchema(ctx)
		if err != nil {
			return nil, err
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupNotifier(cfg *config.Config, logger *zap.Logger) *notify.Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		return notify.New(logger, notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID))
	}

	logger.Info("telegram-not-configured-using-log-notifications")
	return notify.New(logger, notify.NewLogSender(logger))
}

func monitorPairs(cfg *config.Config) []monitor.Pair {
	pairs := make([]monitor.Pair, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pairs = append(pairs, monitor.Pair{
			Symbol:          p.Symbol,
			SpotExchange:    p.SpotExchange,
			FuturesExchange: p.FuturesExchange,
			SpotSymbol:      p.SpotSymbol,
			FuturesSymbol:   p.FuturesSymbol,
		})
	}
	return pairs
}
