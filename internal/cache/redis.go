package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mercadito/shop-backend/internal/entity"
)

const catalogKey = "catalog:products"

// Redis caches the product listing in Redis with a short TTL. Any cache
// error degrades to a miss; the catalog stays authoritative.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *Redis) Get(ctx context.Context) ([]entity.Product, bool) {
	payload, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("catalog cache read failed", "err", err)
		}
		return nil, false
	}
	var products []entity.Product
	if err := json.Unmarshal(payload, &products); err != nil {
		return nil, false
	}
	return products, true
}

func (c *Redis) Set(ctx context.Context, products []entity.Product) {
	payload, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, catalogKey, payload, c.ttl).Err(); err != nil {
		slog.Debug("catalog cache write failed", "err", err)
	}
}

func (c *Redis) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, catalogKey).Err(); err != nil {
		slog.Debug("catalog cache invalidation failed", "err", err)
	}
}
