package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvillegas/storefront-backend/internal/cart"
	"github.com/dvillegas/storefront-backend/internal/cron"
	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/internal/notifications"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/metrics"
	"github.com/dvillegas/storefront-backend/pkg/migrate"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	service, cleanup, err := bootstrap(ctx, cfg, logg)
	defer cleanup()
	if err != nil {
		logg.Error(ctx, "cron worker boot failed", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker shutting down gracefully")
}

// bootstrap connects the worker's dependencies in order. The returned
// cleanup closes whatever was opened, even on a failed boot.
func bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*cron.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect database: %w", err)
	}
	closers = append(closers, func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "close database", err)
		}
	})

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return nil, cleanup, fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect redis: %w", err)
	}
	closers = append(closers, func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "close redis", err)
		}
	})

	registry := cron.NewRegistry()
	if err := registerJobs(registry, cfg, logg, dbClient); err != nil {
		return nil, cleanup, err
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return nil, cleanup, fmt.Errorf("create cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cart.SweepInterval,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("build cron service: %w", err)
	}
	return service, cleanup, nil
}

func registerJobs(registry *cron.Registry, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) error {
	cartRepo := cart.NewRepository(dbClient.DB())
	inventoryLedger, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()))
	if err != nil {
		return fmt.Errorf("build inventory ledger: %w", err)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cartRepo,
		DBClient: dbClient,
		Ledger:   inventoryLedger,
		Events:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		return fmt.Errorf("build cart service: %w", err)
	}

	cartExpiry, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{
		Logger:  logg,
		Carts:   cartRepo,
		Expirer: cartService,
		TTL:     cfg.Cart.TTL,
		Batch:   cfg.Cart.SweepBatch,
	})
	if err != nil {
		return fmt.Errorf("build cart expiry job: %w", err)
	}
	registry.Register(cartExpiry)

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return fmt.Errorf("build notification cleanup job: %w", err)
	}
	registry.Register(notificationCleanup)

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return fmt.Errorf("build outbox retention job: %w", err)
	}
	registry.Register(outboxRetention)

	return nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("sf:%s:lock:%s", serviceKind, env)
}
