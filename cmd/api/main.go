package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvillegas/storefront-backend/api/routes"
	"github.com/dvillegas/storefront-backend/internal/auth"
	"github.com/dvillegas/storefront-backend/internal/cart"
	"github.com/dvillegas/storefront-backend/internal/categories"
	"github.com/dvillegas/storefront-backend/internal/inventory"
	"github.com/dvillegas/storefront-backend/internal/notifications"
	"github.com/dvillegas/storefront-backend/internal/orders"
	products "github.com/dvillegas/storefront-backend/internal/products"
	"github.com/dvillegas/storefront-backend/internal/users"
	"github.com/dvillegas/storefront-backend/pkg/auth/session"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	"github.com/dvillegas/storefront-backend/pkg/migrate"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/redis"
	"github.com/dvillegas/storefront-backend/pkg/square"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	handler, err := buildHandler(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build http handler", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"port":        cfg.App.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (http.Handler, error) {
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("build session manager: %w", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("build register service: %w", err)
	}

	inventoryLedger, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("build inventory ledger: %w", err)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	productService, err := products.NewService(products.NewRepository(dbClient.DB()), dbClient, inventoryLedger)
	if err != nil {
		return nil, fmt.Errorf("build product service: %w", err)
	}
	categoryService, err := categories.NewService(categories.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("build category service: %w", err)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cartRepo,
		DBClient: dbClient,
		Ledger:   inventoryLedger,
		Events:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("build cart service: %w", err)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		return nil, fmt.Errorf("build square client: %w", err)
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Carts:    cartRepo,
		DBClient: dbClient,
		Ledger:   inventoryLedger,
		Events:   outboxService,
		Gateway:  squareClient,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("build notification service: %w", err)
	}

	return routes.NewRouter(routes.RouterParams{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		SessionManager:  sessionManager,
		AuthService:     authService,
		RegisterService: registerService,
		ProductService:  productService,
		CategoryService: categoryService,
		CartService:     cartService,
		OrderService:    orderService,
		Notifications:   notificationService,
	}), nil
}
