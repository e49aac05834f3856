package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/api"
	"options-scalper-bot/internal/bot"
	"options-scalper-bot/internal/broker"
	"options-scalper-bot/internal/database"
	"options-scalper-bot/internal/events"
	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/logging"
	"options-scalper-bot/internal/notification"
	"options-scalper-bot/internal/regime"
	"options-scalper-bot/internal/scenario"
	"options-scalper-bot/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Str("symbol", cfg.BrokerConfig.IndexSymbol).Msg("Starting options scalper bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	var notifyManager *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifyManager = notification.NewManager()
		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			}))
			logger.Info().Msg("Telegram notifications enabled")
		}
		subscribeNotifications(eventBus, notifyManager, logger)
	}

	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(cfg.DatabaseConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Database migrations failed")
		}
		repo = database.NewRepository(db)
		logger.Info().Msg("Database connected and migrated")
	}

	var stateStore *database.RedisStateStore
	var restoredExitReason lifecycle.ExitReason
	var restoredExitAt time.Time
	if cfg.RedisConfig.Enabled {
		stateStore = database.NewRedisStateStore(
			cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB, logger)
		defer stateStore.Close()

		if orphan, err := stateStore.LoadActiveOrder(ctx); err != nil {
			logger.Warn().Err(err).Msg("Could not read previous order snapshot")
		} else if orphan != nil {
			logger.Warn().Str("order_id", orphan.ID).Str("symbol", orphan.TradingSymbol).
				Msg("Found order snapshot from a previous run; manual reconciliation may be needed")
		}
		if reason, exitedAt, err := stateStore.LoadLastExit(ctx); err != nil {
			logger.Warn().Err(err).Msg("Could not read previous exit state")
		} else if !exitedAt.IsZero() {
			restoredExitReason, restoredExitAt = reason, exitedAt
			logger.Info().Str("reason", string(reason)).Time("exited_at", exitedAt).
				Msg("Restored exit state from previous run; entry cooldown may apply")
		}
	}

	creds, err := broker.LoadCredentials(ctx, cfg.BrokerConfig, cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Loading broker credentials failed")
	}

	pricing := broker.NewPricingClient(cfg.BrokerConfig.PricingServiceURL, cfg.BrokerConfig.IndexSymbol, creds)
	cachedPricing := broker.NewCachedOracle(pricing, 2*time.Second)
	marketData := broker.NewMarketDataClient(cfg.BrokerConfig.PricingServiceURL, cfg.BrokerConfig.IndexSymbol, creds)
	sizer := broker.PercentSizer{
		StopPercent: cfg.LifecycleConfig.StopLossPercent,
		Reward:      cfg.LifecycleConfig.RewardRatio,
	}

	regimeMonitor := tracker.NewRegimeMonitor(3)
	reversalTracker := tracker.NewReversalTracker(30, 5)

	managerParams := lifecycle.ManagerParams{
		Lifecycle:   cfg.LifecycleConfig,
		Cooldown:    cfg.CooldownConfig,
		Quantity:    cfg.TradingConfig.Quantity,
		Pricing:     cachedPricing,
		Sizer:       sizer,
		Signals:     regimeMonitor,
		PriceAction: reversalTracker,
		Bus:         eventBus,
	}
	if repo != nil {
		managerParams.Store = repo
	}
	if stateStore != nil {
		managerParams.StateStore = stateStore
	}

	manager, err := lifecycle.NewManager(managerParams, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Creating position manager failed")
	}
	manager.RestoreLastExit(restoredExitReason, restoredExitAt)

	classifier := regime.NewClassifier(cfg.RegimeConfig, cfg.EntryFilterConfig, logger)
	evaluator, err := scenario.NewEvaluator(cfg.ScenarioConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Loading scenarios failed")
	}

	var recorder bot.DecisionRecorder
	if repo != nil {
		recorder = repo
	}
	engine := bot.NewEngine(cfg, classifier, evaluator, manager, marketData, scenario.NewSnapshotScorer(), recorder, logger)
	engine.SetSignalObserver(regimeMonitor)

	feed := broker.NewTickFeed(cfg.BrokerConfig.TickFeedURL, cfg.BrokerConfig.IndexSymbol, creds, logger)
	feed.Start()
	engine.Start(ctx, feed.Ticks())
	logger.Info().Bool("dry_run", cfg.TradingConfig.DryRun).Msg("Engine started")

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		var trades api.TradeHistory
		if repo != nil {
			trades = repo
		}
		server = api.NewServer(cfg.ServerConfig, engine, manager, trades, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	feed.Stop()
	engine.Stop()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}
	logger.Info().Msg("Shutdown complete")
}

// subscribeNotifications routes lifecycle events to the notification
// providers. Handlers run off the tick path; the bus delivers asynchronously.
func subscribeNotifications(bus *events.EventBus, nm *notification.Manager, logger zerolog.Logger) {
	notifyLogger := logger.With().Str("component", "Notifications").Logger()

	bus.Subscribe(events.EventOrderOpened, func(e events.Event) {
		symbol, _ := e.Data["symbol"].(string)
		orderType, _ := e.Data["type"].(string)
		scenarioName, _ := e.Data["scenario"].(string)
		entry, _ := e.Data["entry"].(float64)
		stopLoss, _ := e.Data["stop_loss"].(float64)
		target, _ := e.Data["target"].(float64)
		if err := nm.SendTradeOpen(symbol, orderType, scenarioName, entry, stopLoss, target); err != nil {
			notifyLogger.Warn().Err(err).Msg("Trade open notification failed")
		}
	})

	bus.Subscribe(events.EventOrderExited, func(e events.Event) {
		symbol, _ := e.Data["symbol"].(string)
		reason, _ := e.Data["reason"].(string)
		entryPrice, _ := e.Data["entry_price"].(float64)
		exitPrice, _ := e.Data["exit_price"].(float64)
		profit, _ := e.Data["profit"].(float64)
		if err := nm.SendTradeClose(symbol, reason, entryPrice, exitPrice, profit); err != nil {
			notifyLogger.Warn().Err(err).Msg("Trade close notification failed")
		}
	})

	bus.Subscribe(events.EventMilestoneHit, func(e events.Event) {
		symbol, _ := e.Data["symbol"].(string)
		milestone, _ := e.Data["milestone"].(int)
		price, _ := e.Data["price"].(float64)
		stopLoss, _ := e.Data["stop_loss"].(float64)
		if err := nm.SendMilestone(symbol, milestone, price, stopLoss); err != nil {
			notifyLogger.Warn().Err(err).Msg("Milestone notification failed")
		}
	})
}
