package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito/shop-backend/internal/cache"
	"github.com/mercadito/shop-backend/internal/config"
	delivery "github.com/mercadito/shop-backend/internal/delivery/http"
	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/messaging"
	"github.com/mercadito/shop-backend/internal/messaging/kafka"
	"github.com/mercadito/shop-backend/internal/repository"
	"github.com/mercadito/shop-backend/internal/repository/dynamo"
	"github.com/mercadito/shop-backend/internal/service"
)

func main() {
	cfg := config.Load()
	slog.SetLogLoggerLevel(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- DynamoDB ---
	client, err := dynamo.Open(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		slog.Error("Failed to init DynamoDB client", "err", err)
		os.Exit(1)
	}

	store := dynamo.NewStore(client, dynamo.Tables{
		Users:    cfg.UsersTable,
		Products: cfg.ProductsTable,
		Carts:    cfg.CartTable,
		Orders:   cfg.OrdersTable,
	})
	if err := store.EnsureTables(ctx); err != nil {
		slog.Error("Failed to ensure tables", "err", err)
		os.Exit(1)
	}

	userRepo := dynamo.NewUserRepository(store)
	productRepo := dynamo.NewProductRepository(store)
	cartRepo := dynamo.NewCartRepository(store)
	orderRepo := dynamo.NewOrderRepository(store)

	if err := seedCatalog(ctx, productRepo); err != nil {
		slog.Error("Failed to seed products", "err", err)
		os.Exit(1)
	}

	// --- Cache ---
	var catalogCache cache.ProductCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		catalogCache = cache.NewRedis(cfg.RedisAddr, cfg.CatalogCacheTTL)
		slog.Info("Catalog cache enabled", "addr", cfg.RedisAddr)
	}

	// --- Kafka ---
	var publisher messaging.Publisher = messaging.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		slog.Info("Order events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.OrdersTopic)
	}

	// --- Services ---
	authSvc := service.NewAuthService(userRepo, cfg.AdminEmail, cfg.AdminPassword)
	catalogSvc := service.NewCatalogService(productRepo, catalogCache)
	cartSvc := service.NewCartService(productRepo, cartRepo)
	checkoutSvc := service.NewCheckoutService(cartRepo, orderRepo, userRepo, publisher, cfg.OrdersTopic)

	// --- HTTP ---
	sessionMgr := delivery.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	handler := delivery.NewHandler(authSvc, catalogSvc, cartSvc, checkoutSvc, sessionMgr)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: delivery.EnableCORS(mux),
	}

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

// seedCatalog inserts a few demo products into an empty catalog.
func seedCatalog(ctx context.Context, products repository.ProductRepository) error {
	now := time.Now().UTC()
	return products.Seed(ctx, []entity.Product{
		{ID: uuid.New().String(), Title: "Mechanical Keyboard", Price: 89.99, Stock: 25, CreatedAt: now},
		{ID: uuid.New().String(), Title: "Wireless Mouse", Price: 29.99, Stock: 50, CreatedAt: now},
		{ID: uuid.New().String(), Title: "USB-C Hub", Price: 45.50, Stock: 30, CreatedAt: now},
		{ID: uuid.New().String(), Title: "27\" Monitor", Price: 249.00, Stock: 10, CreatedAt: now},
	})
}
