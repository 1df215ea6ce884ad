package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito/shop-backend/internal/cache"
	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/repository"
)

// CatalogService manages the product catalog. The public listing goes
// through a short-lived cache; any mutation invalidates it.
type CatalogService struct {
	products repository.ProductRepository
	cache    cache.ProductCache
}

func NewCatalogService(products repository.ProductRepository, c cache.ProductCache) *CatalogService {
	return &CatalogService{products: products, cache: c}
}

func (s *CatalogService) List(ctx context.Context) ([]entity.Product, error) {
	if products, ok := s.cache.Get(ctx); ok {
		return products, nil
	}
	products, err := s.products.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, products)
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*entity.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, title string, price float64, stock int) (*entity.Product, error) {
	if title == "" {
		return nil, entity.Invalid("title", "must not be empty")
	}
	if price < 0 {
		return nil, entity.Invalid("price", "must not be negative")
	}
	if stock < 0 {
		return nil, entity.Invalid("stock", "must not be negative")
	}

	product := &entity.Product{
		ID:        uuid.New().String(),
		Title:     title,
		Price:     price,
		Stock:     stock,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.cache.Invalidate(ctx)
	return product, nil
}

// Update applies a partial attribute set; omitted fields keep their prior
// value. Fields outside the allow-list are rejected.
func (s *CatalogService) Update(ctx context.Context, id string, attrs map[string]any) (*entity.Product, error) {
	if len(attrs) == 0 {
		return nil, entity.Invalid("body", "no updatable fields")
	}

	clean := make(map[string]any, len(attrs))
	for name, value := range attrs {
		switch name {
		case "title":
			str, ok := value.(string)
			if !ok || str == "" {
				return nil, entity.Invalid(name, "must be a non-empty string")
			}
			clean[name] = str
		case "price":
			price, ok := toFloat(value)
			if !ok || price < 0 {
				return nil, entity.Invalid(name, "must be a non-negative number")
			}
			clean[name] = price
		case "stock":
			raw, ok := toFloat(value)
			if !ok || raw < 0 || raw != math.Trunc(raw) {
				return nil, entity.Invalid(name, "must be a non-negative integer")
			}
			clean[name] = int(raw)
		default:
			return nil, entity.Invalid(name, "not an updatable field")
		}
	}

	product, err := s.products.Update(ctx, id, clean)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return product, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// toFloat coerces the numeric types a decoded JSON body can carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
