package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvillegas/storefront-backend/internal/notifications"
	"github.com/dvillegas/storefront-backend/internal/orders"
	"github.com/dvillegas/storefront-backend/internal/receipts"
	"github.com/dvillegas/storefront-backend/internal/users"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/migrate"
	"github.com/dvillegas/storefront-backend/pkg/outbox/idempotency"
	"github.com/dvillegas/storefront-backend/pkg/pubsub"
	"github.com/dvillegas/storefront-backend/pkg/redis"
)

const consumerIdempotencyTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient, pubsubClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, pubsubClient *pubsub.Client) (*Service, error) {
	idem, err := idempotency.NewManager(redisClient, consumerIdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("build idempotency manager: %w", err)
	}

	notificationRepo := notifications.NewRepository(dbClient.DB())
	orderNotifications, err := notifications.NewConsumer(notificationRepo, pubsubClient.OrdersSubscription(), idem, logg)
	if err != nil {
		return nil, fmt.Errorf("build order notification consumer: %w", err)
	}

	var cartNotifications *notifications.Consumer
	if sub := pubsubClient.CartsSubscription(); sub != nil {
		cartNotifications, err = notifications.NewConsumer(notificationRepo, sub, idem, logg)
		if err != nil {
			return nil, fmt.Errorf("build cart notification consumer: %w", err)
		}
	} else {
		logg.Warn(context.Background(), "carts subscription not configured, cart expiry notifications disabled")
	}

	renderer, err := receipts.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("build receipt renderer: %w", err)
	}
	sender, err := receipts.NewLogSender(logg, cfg.Receipts.FromEmail)
	if err != nil {
		return nil, fmt.Errorf("build receipt sender: %w", err)
	}
	receiptService, err := receipts.NewService(receipts.ServiceParams{
		Orders:    orders.NewRepository(dbClient.DB()),
		Users:     users.NewRepository(dbClient.DB()),
		Renderer:  renderer,
		Sender:    sender,
		StoreName: cfg.Receipts.StoreName,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("build receipt service: %w", err)
	}
	receiptConsumer, err := receipts.NewConsumer(receiptService, pubsubClient.ReceiptsSubscription(), idem, logg)
	if err != nil {
		return nil, fmt.Errorf("build receipt consumer: %w", err)
	}

	return NewService(ServiceParams{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		PubSub:             pubsubClient,
		OrderNotifications: orderNotifications,
		CartNotifications:  cartNotifications,
		Receipts:           receiptConsumer,
	})
}
