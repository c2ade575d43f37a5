package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/handler"
	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/lock"
	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/sqlstore"
	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/storage"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/config"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/logging"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/metrics"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/notifications"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/worker"
)

// backend is everything main needs from a store implementation.
type backend interface {
	loyalty.Store
	handler.Keys
	worker.Outbox
}

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := logging.Setup(logging.Options{Service: "loyalty-api", Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	logging.Install(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to Database
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Database connection failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	// 4. Setup Engine
	engineMetrics := metrics.Default()
	opts := []loyalty.Option{
		loyalty.WithPolicy(domain.Policy{PointsPerCurrencyUnit: cfg.PointsPerCurrencyUnit, Currency: domain.DefaultPolicy().Currency}),
		loyalty.WithRecorder(engineMetrics),
		loyalty.WithLogger(logger),
		loyalty.WithMaxAttempts(cfg.MaxTxAttempts),
	}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		opts = append(opts, loyalty.WithLocker(lock.NewRedisLocker(rdb, cfg.LockTTL, logger)))
		slog.Info("Using redis key locks", "addr", cfg.RedisAddr)
	}
	service := loyalty.NewService(store, opts...)

	// 5. Setup Fiber
	app := handler.NewRouter(handler.RouterConfig{
		Service:    service,
		Keys:       store,
		AdminToken: cfg.AdminToken,
		Metrics:    promhttp.Handler(),
	})
	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN is not set, operator routes are disabled")
	}

	// 6. Start Worker
	if cfg.WebhookSecret == "" {
		slog.Warn("WEBHOOK_SECRET is not set, webhooks will be sent unsigned")
	}
	sender := notifications.NewSender(cfg.WebhookSecret, 5*time.Second)
	workerDone := worker.NewWebhookWorker(store, sender, cfg.WorkerInterval, logger, engineMetrics).Start(ctx)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port, "driver", cfg.StoreDriver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			stop()
		}
	}()

	// Block here until we receive a stop signal
	<-ctx.Done()
	slog.Info("Shutting down server...")

	// Stop accepting new requests and finish active ones.
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	<-workerDone

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("Redis close failed", "error", err)
		}
	}
	if err := closer.Close(); err != nil {
		slog.Error("Database close failed", "error", err)
	}
	slog.Info("Server exited successfully")
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func openStore(ctx context.Context, cfg *config.Config) (backend, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(db)
		return store, store, nil
	default:
		pool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return storage.NewStore(pool), closeFunc(func() error { pool.Close(); return nil }), nil
	}
}
