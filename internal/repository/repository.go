package repository

import (
	"context"

	"github.com/mercadito/shop-backend/internal/entity"
)

// UserRepository handles persistence for Users. Lookups by email and
// username go through secondary indexes.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindAll(ctx context.Context) ([]entity.User, error)
	// Update applies the given attributes to an existing user and returns
	// the updated record. Fails with entity.ErrNotFound for a missing user.
	Update(ctx context.Context, id string, attrs map[string]any) (*entity.User, error)
	Delete(ctx context.Context, id string) error
	// Exists is a cheap existence probe used to reject sessions of deleted
	// users.
	Exists(ctx context.Context, id string) (bool, error)
}

// ProductRepository handles persistence for Products.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	FindAll(ctx context.Context) ([]entity.Product, error)
	Update(ctx context.Context, id string, attrs map[string]any) (*entity.Product, error)
	Delete(ctx context.Context, id string) error
	// RestoreStock adds qty back to a product's stock. Additive and
	// unguarded: there is no condition on the current stock value.
	RestoreStock(ctx context.Context, id string, qty int) error
	// Seed inserts initial products if the catalog is empty.
	Seed(ctx context.Context, products []entity.Product) error
}

// CartRepository handles persistence for cart lines, keyed by
// (user, product).
type CartRepository interface {
	// Reserve decrements the product's stock by qty guarded by
	// stock >= qty and upserts the cart line in the same conditional
	// write: an existing line gains qty, a new line snapshots the
	// product's title and price. A failed guard (a concurrent consumer
	// won the race) surfaces as entity.ErrInsufficientStock.
	Reserve(ctx context.Context, userID string, product *entity.Product, qty int) error
	Find(ctx context.Context, userID, productID string) (*entity.CartLine, error)
	FindAll(ctx context.Context, userID string) ([]entity.CartLine, error)
	DeleteLine(ctx context.Context, userID, productID string) error
	// Clear removes every line for the user. Best effort: on a partial
	// batch failure it reports entity.ErrPartialClear and leaves the
	// remaining lines in place.
	Clear(ctx context.Context, userID string) error
}

// OrderRepository handles persistence for Orders.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByUser(ctx context.Context, userID string) ([]entity.Order, error)
	FindAll(ctx context.Context) ([]entity.Order, error)
}
