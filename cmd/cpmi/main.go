package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkodell/cpmi/internal/api"
	"github.com/arkodell/cpmi/internal/config"
	"github.com/arkodell/cpmi/internal/exchange"
	"github.com/arkodell/cpmi/internal/index"
	"github.com/arkodell/cpmi/internal/logger"
	"github.com/arkodell/cpmi/internal/polymarket"
	"github.com/arkodell/cpmi/internal/scheduler"
	"github.com/arkodell/cpmi/internal/storage"
	"github.com/arkodell/cpmi/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage.MaxSnapshots, cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
	} else {
		logger.Debug("Snapshot storage disabled")
	}

	polyClient := polymarket.NewClient(
		cfg.Polymarket.DataAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.ClientConfig{
			MaxRetries:     cfg.Polymarket.MaxRetries,
			RetryDelayBase: cfg.Polymarket.RetryDelay,
		},
	)

	engine, err := index.New(index.Config{
		CategoryWeights: cfg.Index.CategoryWeights,
		Sensitivity:     cfg.Index.Sensitivity,
		Baseline:        cfg.Index.Baseline,
		SmoothingWindow: cfg.Index.SmoothingWindow,
		FetchLimit:      cfg.Polymarket.Limit,
		HistoryTail:     cfg.Index.HistoryTail,
	}, polyClient)
	if err != nil {
		logger.Fatal("Failed to initialize index engine: %v", err)
	}

	var exchangeClient *exchange.Client
	if cfg.Exchange.Enabled {
		exchangeClient = exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.Timeout)
		logger.Info("Exchange price feed enabled (assets: %v)", cfg.Exchange.Assets)
	} else {
		engine.UpdatePrices(cfg.Exchange.Prices, nil)
		logger.Info("Exchange price feed disabled, using %d static reference prices", len(cfg.Exchange.Prices))
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries,
			cfg.Telegram.RetryDelay,
			statusLine(engine),
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	var apiServer *http.Server
	if cfg.API.Enabled {
		apiServer = &http.Server{
			Addr:    cfg.API.ListenAddr,
			Handler: api.NewServer(engine, snapshotStore(store)).Router(),
		}
		go func() {
			logger.Info("API listening on %s", cfg.API.ListenAddr)
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server failed: %v", err)
			}
		}()
	}

	if exchangeClient != nil {
		refreshCloseHistory(ctx, exchangeClient, engine, cfg)
	}

	lastAlert := time.Time{}
	cycle := func(ctx context.Context) error {
		return runCycle(ctx, engine, exchangeClient, store, telegramClient, cfg, &lastAlert)
	}

	consecutiveFailures := 0
	onResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Index cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	logger.Info("Starting index service (interval: %v, baseline: %.0f, smoothing window: %v, categories: %d)",
		cfg.Polymarket.PollInterval,
		cfg.Index.Baseline,
		cfg.Index.SmoothingWindow,
		len(cfg.Index.CategoryWeights),
	)

	runner := scheduler.New(cfg.Polymarket.PollInterval, cycle, onResult)
	runner.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, cleaning up...")
	cancel()
	runner.Stop()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("API shutdown failed: %v", err)
		}
	}

	logger.Info("Service stopped")
}

func runCycle(
	ctx context.Context,
	engine *index.Engine,
	exchangeClient *exchange.Client,
	store *storage.Storage,
	telegramClient *telegram.Client,
	cfg *config.Config,
	lastAlert *time.Time,
) error {
	startTime := time.Now()
	logger.Debug("Starting index cycle")

	if exchangeClient != nil {
		prices, err := exchangeClient.Prices(ctx, cfg.Exchange.Assets)
		if err != nil {
			logger.Warn("Price refresh failed, keeping previous reference prices: %v", err)
		} else {
			engine.UpdatePrices(prices, nil)
			logger.Debug("Refreshed %d reference prices", len(prices))
		}
	}

	snap, err := engine.Tick(ctx)
	if err != nil {
		return fmt.Errorf("index cycle failed: %w", err)
	}
	if snap == nil {
		logger.Info("No qualifying markets this cycle, index unchanged")
		return nil
	}

	logger.Info("Index updated: %.2f (%s, raw %.2f) from %d markets",
		snap.Value, snap.Interpretation, snap.RawValue, len(snap.Markets))

	if store != nil {
		if err := store.SaveSnapshot(snap); err != nil {
			logger.Warn("Failed to persist snapshot: %v", err)
		}
	}

	checkAlert(snap.Value, cfg, store, telegramClient, engine, lastAlert)

	logger.Debug("Index cycle completed in %v", time.Since(startTime))
	return nil
}

// checkAlert fires a threshold alert when the smoothed index deviates
// from the baseline by more than the configured amount, honoring the
// cooldown between alerts.
func checkAlert(
	value float64,
	cfg *config.Config,
	store *storage.Storage,
	telegramClient *telegram.Client,
	engine *index.Engine,
	lastAlert *time.Time,
) {
	if !cfg.Alerts.Enabled {
		return
	}
	deviation := value - cfg.Index.Baseline
	if math.Abs(deviation) < cfg.Alerts.Threshold {
		return
	}
	if !lastAlert.IsZero() && time.Since(*lastAlert) < cfg.Alerts.Cooldown {
		logger.Debug("Alert suppressed by cooldown (deviation %.2f)", deviation)
		return
	}
	*lastAlert = time.Now()

	msg := fmt.Sprintf("index %.2f deviates %.2f from baseline %.0f", value, deviation, cfg.Index.Baseline)
	logger.Info("Threshold alert: %s", msg)

	if store != nil {
		if err := store.SaveAlert(value, deviation, msg, *lastAlert); err != nil {
			logger.Warn("Failed to persist alert: %v", err)
		}
	}
	if telegramClient != nil {
		if err := telegramClient.SendIndexAlert(value, cfg.Index.Baseline, engine.CategoryBreakdown()); err != nil {
			logger.Warn("Failed to send index alert to Telegram: %v", err)
		}
	}
}

// refreshCloseHistory seeds the asset volatility factor from daily
// close history. Fetched once at startup; the EWMA evolves from spot
// observations after that.
func refreshCloseHistory(ctx context.Context, client *exchange.Client, engine *index.Engine, cfg *config.Config) {
	closes := make(map[string][]float64, len(cfg.Exchange.Assets))
	for _, asset := range cfg.Exchange.Assets {
		series, err := client.CloseHistory(ctx, asset, cfg.Exchange.HistoryDays)
		if err != nil {
			logger.Warn("Close history fetch for %s failed: %v", asset, err)
			continue
		}
		closes[asset] = series
	}
	if len(closes) > 0 {
		engine.UpdatePrices(nil, closes)
		logger.Info("Seeded volatility from close history for %d assets", len(closes))
	}
}

// statusLine renders the current index for the /index bot command.
func statusLine(engine *index.Engine) telegram.StatusFunc {
	return func() string {
		current := engine.CurrentIndex()
		if current.LastUpdate == nil {
			return "Index not computed yet"
		}
		return fmt.Sprintf("CPMI %.2f (%s), updated %s",
			current.Value, current.Interpretation, current.LastUpdate.Format(time.RFC3339))
	}
}

// snapshotStore adapts a possibly-nil *storage.Storage into the API's
// optional store interface without producing a typed nil.
func snapshotStore(store *storage.Storage) api.SnapshotStore {
	if store == nil {
		return nil
	}
	return store
}
