package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/urielssan/subite/internal/api"
	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/database"
	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/events"
	"github.com/urielssan/subite/internal/google"
	"github.com/urielssan/subite/internal/logging"
	"github.com/urielssan/subite/internal/metrics"
	"github.com/urielssan/subite/internal/pricing"
	"github.com/urielssan/subite/internal/repository"
	"github.com/urielssan/subite/internal/service"
	"github.com/urielssan/subite/internal/slots"
	"github.com/urielssan/subite/internal/worker"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := slots.FromConfig(cfg.Slots)
	if err != nil {
		return fmt.Errorf("slot catalog: %w", err)
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	cache := initCache(redisClient, logger)

	quoter := pricing.NewClient(cfg.Pricing, cache, logging.Component(logger, "pricing"))
	calc := pricing.NewCalculator(db, quoter, cfg.Pricing.FallbackSurcharge, logging.Component(logger, "pricing"))
	clock := service.NewSystemClock(cfg.Location())

	bus := events.NewEventBus()
	initTelegram(cfg, bus, logger)
	if forwarder := initAMQP(cfg, bus, logger); forwarder != nil {
		defer forwarder.Close()
	}

	var syncWorker domain.SyncWorker
	if sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, logger); sheetsWorker != nil {
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	serviceLogger := logging.Component(logger, "service")
	capacity := cfg.Slots.DefaultCapacity
	deps := api.Deps{
		Bookings: service.NewBookingService(db, db, calc, catalog, clock, bus, syncWorker, capacity, serviceLogger),
		Admin:    service.NewAdminService(db, db, db, clock, bus, syncWorker, capacity, serviceLogger),
		Slots:    service.NewSlotService(db, catalog, clock, bus, syncWorker, serviceLogger),
		Catalog:  catalog,
		Clock:    clock,
		Cache:    cache,
		DB:       db,
	}

	backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
	go backup.Start(ctx)

	startMetrics(ctx, cfg, logger)

	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := api.NewServer(cfg.API, deps, logger)

	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"),
		database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if cfg.Database.PricesSeed == "" {
		return db, nil
	}
	values, err := database.LoadPriceSeed(cfg.Database.PricesSeed)
	if err != nil {
		logger.Warn().Err(err).Str("seed", cfg.Database.PricesSeed).Msg("price seed not loaded, using defaults")
		return db, nil
	}
	inserted, err := db.SeedPrices(ctx, values)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed prices: %w", err)
	}
	logger.Info().Int("inserted", inserted).Msg("price seed applied")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initCache(client *redis.Client, logger *zerolog.Logger) domain.CacheRepository {
	memory := repository.NewMemoryCacheRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverCacheRepository(
		repository.NewRedisCacheRepository(client), memory, logging.Component(logger, "cache"))
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	bot.Debug = cfg.Telegram.Debug

	notifier := service.NewTelegramService(bot, cfg.Telegram.ManagerChats, logging.Component(logger, "telegram"))
	notifier.Register(bus)
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.ManagerChats)).Msg("telegram notifications enabled")
}

func initAMQP(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *events.AMQPForwarder {
	if cfg.AMQP.URL == "" {
		return nil
	}

	forwarder, err := events.DialAMQP(cfg.AMQP, logging.Component(logger, "amqp"))
	if err != nil {
		logger.Warn().Err(err).Msg("amqp init failed, continuing without broker")
		return nil
	}
	forwarder.Register(bus)
	logger.Info().Str("queue", cfg.AMQP.Queue).Msg("amqp forwarding enabled")
	return forwarder
}

func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) *worker.SheetsWorker {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, sync tasks will retry")
	} else if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets row cache not warmed")
	}

	logger.Info().Msg("google sheets connected")
	return worker.NewSheetsWorker(db, sheets, redisClient, worker.RetryPolicy{}, logging.Component(logger, "sheets-worker"))
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.Server, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
