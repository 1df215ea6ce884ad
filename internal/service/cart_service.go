package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/repository"
)

// CartService mutates per-user carts. Stock moves in lockstep with cart
// lines: Add reserves stock behind the store's conditional write and Remove
// restores it.
type CartService struct {
	products repository.ProductRepository
	carts    repository.CartRepository
}

func NewCartService(products repository.ProductRepository, carts repository.CartRepository) *CartService {
	return &CartService{products: products, carts: carts}
}

// Add reserves qty units of the product for the user's cart. The stock
// decrement and the line upsert run under one conditional write; losing a
// race against a concurrent consumer surfaces as ErrInsufficientStock even
// when the preceding read looked fine.
func (s *CartService) Add(ctx context.Context, userID, productID string, qty int) (*entity.CartLine, error) {
	if qty <= 0 {
		return nil, entity.Invalid("quantity", "must be positive")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > product.Stock {
		return nil, entity.ErrInsufficientStock
	}

	if err := s.carts.Reserve(ctx, userID, product, qty); err != nil {
		return nil, err
	}

	line, err := s.carts.Find(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart line back: %w", err)
	}
	return line, nil
}

// Remove is idempotent: a missing line is a successful no-op. An existing
// line's quantity is restored to product stock before the line is deleted;
// a delete failure after the restore leaves an orphaned line with inflated
// stock, which is logged and reported as success.
func (s *CartService) Remove(ctx context.Context, userID, productID string) error {
	line, err := s.carts.Find(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up cart line: %w", err)
	}

	if err := s.products.RestoreStock(ctx, productID, line.Quantity); err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
		// Product deleted while in the cart; nothing to restore.
		slog.Warn("restore skipped for missing product", "product_id", productID)
	}

	if err := s.carts.DeleteLine(ctx, userID, productID); err != nil {
		slog.Error("cart line delete failed after stock restore",
			"user_id", userID, "product_id", productID, "err", err)
		return nil
	}
	return nil
}

func (s *CartService) List(ctx context.Context, userID string) ([]entity.CartLine, error) {
	return s.carts.FindAll(ctx, userID)
}

// Clear removes every line for the user. ErrPartialClear propagates so the
// caller can decide whether to retry.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}
