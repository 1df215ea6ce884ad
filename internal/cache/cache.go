package cache

import (
	"context"

	"github.com/mercadito/shop-backend/internal/entity"
)

// ProductCache caches the public product listing.
type ProductCache interface {
	Get(ctx context.Context) ([]entity.Product, bool)
	Set(ctx context.Context, products []entity.Product)
	Invalidate(ctx context.Context)
}

// Nop is a ProductCache that never hits; used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context) ([]entity.Product, bool) { return nil, false }
func (Nop) Set(context.Context, []entity.Product)        {}
func (Nop) Invalidate(context.Context)                   {}
