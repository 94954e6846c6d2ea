package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onlinestore/internal/config"
	"onlinestore/internal/database"
	"onlinestore/internal/handlers"
	"onlinestore/internal/logging"
	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
	"onlinestore/internal/server"
	"onlinestore/internal/services"
	"onlinestore/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if cfg.SeedProducts {
		if err := seedProducts(ctx, store.Products(), logger); err != nil {
			return err
		}
	}

	// --- RabbitMQ ---
	var publisher services.OrderEventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQEnabled {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		defer mqClient.Close()
		publisher = mqClient
	}

	// --- Services and handlers ---
	limits := services.QuantityLimits{Min: cfg.CartMinQuantity, Max: cfg.CartMaxQuantity}
	cartService := services.NewCartService(store, limits, logger)
	orderService := services.NewOrderService(store, publisher, logger)
	productService := services.NewProductService(store.Products(), logger)

	app := server.NewApp(server.Options{
		AccessLog:    true,
		Logger:       logger,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Health: func() fiber.Map {
			mq := "disabled"
			if mqClient != nil {
				mq = "connected"
			}
			return fiber.Map{"database": cfg.DBDriver, "rabbitmq": mq}
		},
	},
		handlers.NewProductHandler(productService, logger),
		handlers.NewCartHandler(cartService, logger),
		handlers.NewOrderHandler(orderService, logger),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.AppPort))
		if err := app.Listen(cfg.AppPort); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		return app.ShutdownWithTimeout(cfg.ShutdownTimeout)
	})

	g.Go(func() error {
		runCartCleanup(gctx, cartService, cfg.CartTTL, cfg.CartCleanupInterval, logger)
		return nil
	})

	if mqClient != nil {
		g.Go(func() error {
			err := mqClient.ConsumeOrderEvents(gctx, logOrderEvent(logger))
			if err != nil && gctx.Err() == nil {
				// The server keeps running without the consumer.
				logger.Error("order event consumer stopped", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Info("using in-memory store")
		return repositories.NewMockStore(), nil
	}

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.DBDriver, logger); err != nil {
			return nil, err
		}
	}
	logger.Info("database ready", zap.String("driver", cfg.DBDriver))
	return repositories.NewGORMStore(db), nil
}

// runCartCleanup purges stale carts every interval until ctx is done.
func runCartCleanup(ctx context.Context, carts *services.CartService, ttl, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := carts.PurgeStaleCarts(ctx, ttl); err != nil && ctx.Err() == nil {
				logger.Warn("stale cart cleanup failed", zap.Error(err))
			}
		}
	}
}

func logOrderEvent(logger *zap.Logger) func(rabbitmq.OrderEvent) error {
	return func(event rabbitmq.OrderEvent) error {
		logger.Info("order event received",
			zap.String("type", string(event.Type)),
			zap.String("order_number", event.OrderNumber),
			zap.String("status", event.Status),
			zap.String("previous_status", event.PreviousStatus))
		return nil
	}
}

// seedProducts fills an empty catalog with a few demo products.
func seedProducts(ctx context.Context, repo repositories.ProductRepository, logger *zap.Logger) error {
	existing, err := repo.List(ctx, repositories.ProductFilter{}, repositories.PageRequest{Size: 1})
	if err != nil {
		return fmt.Errorf("failed to inspect catalog: %w", err)
	}
	if existing.TotalElements > 0 {
		return nil
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1200.00"), StockQuantity: 10, Category: "electronics", SKU: "LAP-001"},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("75.00"), StockQuantity: 25, Category: "accessories", SKU: "KEY-001"},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.RequireFromString("25.00"), StockQuantity: 50, Category: "accessories", SKU: "MOU-001"},
		{Name: "Monitor", Description: "27 inch 4K monitor", Price: decimal.RequireFromString("349.99"), StockQuantity: 8, Category: "electronics", SKU: "MON-001"},
	}

	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].Name, err)
		}
		logger.Debug("seeded product", zap.String("name", products[i].Name), zap.Uint("id", products[i].ID))
	}
	logger.Info("product catalog seeded", zap.Int("count", len(products)))
	return nil
}
