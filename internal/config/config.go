package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all runtime settings for the service.
type Config struct {
	HTTPAddr string

	AWSRegion      string
	DynamoEndpoint string // non-empty to target DynamoDB Local
	UsersTable     string
	ProductsTable  string
	CartTable      string
	OrdersTable    string

	SessionSecret string
	SessionTTL    time.Duration

	AdminEmail    string
	AdminPassword string // empty disables the built-in admin login

	KafkaBrokers []string
	OrdersTopic  string

	RedisAddr       string // empty disables the catalog cache
	CatalogCacheTTL time.Duration

	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		DynamoEndpoint:  os.Getenv("DYNAMODB_ENDPOINT"),
		UsersTable:      getEnv("USERS_TABLE", "users"),
		ProductsTable:   getEnv("PRODUCTS_TABLE", "products"),
		CartTable:       getEnv("CART_TABLE", "carts"),
		OrdersTable:     getEnv("ORDERS_TABLE", "orders"),
		SessionSecret:   getEnv("SECRET_KEY", "dev123"),
		SessionTTL:      4 * time.Hour,
		AdminEmail:      getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		OrdersTopic:     getEnv("ORDERS_TOPIC", "orders.placed"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CatalogCacheTTL: 30 * time.Second,
		LogLevel:        parseLevel(getEnv("LOG_LEVEL", "info")),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
