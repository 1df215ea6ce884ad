// Package memory provides in-memory repositories with the same
// conditional-write semantics as the DynamoDB store. It backs the unit
// tests and offers failure-injection hooks for the degraded paths.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/repository"
)

// Store holds all four entity maps behind one mutex so the cross-entity
// writes (stock + cart line) are atomic, like the DynamoDB transaction.
type Store struct {
	mu       sync.Mutex
	users    map[string]entity.User
	products map[string]entity.Product
	carts    map[string]map[string]entity.CartLine // user id → product id → line
	orders   map[string]entity.Order

	// Failure injection.
	FailLineDelete bool // cart line deletes fail
	ClearAfter     int  // when > 0, Clear fails after deleting this many lines
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]entity.User),
		products: make(map[string]entity.Product),
		carts:    make(map[string]map[string]entity.CartLine),
		orders:   make(map[string]entity.Order),
	}
}

func (s *Store) Users() repository.UserRepository       { return &userRepo{s: s} }
func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }
func (s *Store) Carts() repository.CartRepository       { return &cartRepo{s: s} }
func (s *Store) Orders() repository.OrderRepository     { return &orderRepo{s: s} }

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return entity.ErrConflict
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &user, nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (r *userRepo) FindAll(_ context.Context) ([]entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]entity.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		users = append(users, user)
	}
	return users, nil
}

func (r *userRepo) Update(_ context.Context, id string, attrs map[string]any) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	for name, value := range attrs {
		switch name {
		case "username":
			user.Username = value.(string)
		case "email":
			user.Email = value.(string)
		case "password":
			user.Password = value.(string)
		}
	}
	r.s.users[id] = user
	return &user, nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.users[id]
	return ok, nil
}

// --- products ---

type productRepo struct{ s *Store }

func (r *productRepo) Create(_ context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[product.ID]; ok {
		return entity.ErrConflict
	}
	r.s.products[product.ID] = *product
	return nil
}

func (r *productRepo) FindByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &product, nil
}

func (r *productRepo) FindAll(_ context.Context) ([]entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	products := make([]entity.Product, 0, len(r.s.products))
	for _, product := range r.s.products {
		products = append(products, product)
	}
	return products, nil
}

func (r *productRepo) Update(_ context.Context, id string, attrs map[string]any) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	for name, value := range attrs {
		switch name {
		case "title":
			product.Title = value.(string)
		case "price":
			product.Price = value.(float64)
		case "stock":
			product.Stock = value.(int)
		}
	}
	r.s.products[id] = product
	return &product, nil
}

func (r *productRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.products, id)
	return nil
}

func (r *productRepo) RestoreStock(_ context.Context, id string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[id]
	if !ok {
		return entity.ErrNotFound
	}
	product.Stock += qty
	r.s.products[id] = product
	return nil
}

func (r *productRepo) Seed(ctx context.Context, products []entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.products) > 0 {
		return nil
	}
	for _, p := range products {
		r.s.products[p.ID] = p
	}
	return nil
}

// --- carts ---

type cartRepo struct{ s *Store }

func (r *cartRepo) Reserve(_ context.Context, userID string, product *entity.Product, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.products[product.ID]
	if !ok {
		return entity.ErrNotFound
	}
	if current.Stock < qty {
		return entity.ErrInsufficientStock
	}
	current.Stock -= qty
	r.s.products[product.ID] = current

	lines := r.s.carts[userID]
	if lines == nil {
		lines = make(map[string]entity.CartLine)
		r.s.carts[userID] = lines
	}
	line, ok := lines[product.ID]
	if !ok {
		line = entity.CartLine{
			UserID:    userID,
			ProductID: product.ID,
			Title:     product.Title,
			Price:     product.Price,
			AddedAt:   time.Now().UTC(),
		}
	}
	line.Quantity += qty
	lines[product.ID] = line
	return nil
}

func (r *cartRepo) Find(_ context.Context, userID, productID string) (*entity.CartLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	line, ok := r.s.carts[userID][productID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &line, nil
}

func (r *cartRepo) FindAll(_ context.Context, userID string) ([]entity.CartLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lines := make([]entity.CartLine, 0, len(r.s.carts[userID]))
	for _, line := range r.s.carts[userID] {
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *cartRepo) DeleteLine(_ context.Context, userID, productID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailLineDelete {
		return errors.New("injected line delete failure")
	}
	delete(r.s.carts[userID], productID)
	return nil
}

func (r *cartRepo) Clear(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deleted := 0
	for productID := range r.s.carts[userID] {
		if r.s.ClearAfter > 0 && deleted >= r.s.ClearAfter {
			return entity.ErrPartialClear
		}
		delete(r.s.carts[userID], productID)
		deleted++
	}
	return nil
}

// --- orders ---

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(_ context.Context, order *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[order.ID]; ok {
		return entity.ErrConflict
	}
	stored := *order
	stored.Items = slices.Clone(order.Items)
	r.s.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) FindByUser(_ context.Context, userID string) ([]entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var orders []entity.Order
	for _, order := range r.s.orders {
		if order.UserID == userID {
			order.Items = slices.Clone(order.Items)
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *orderRepo) FindAll(_ context.Context) ([]entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orders := make([]entity.Order, 0, len(r.s.orders))
	for _, order := range r.s.orders {
		order.Items = slices.Clone(order.Items)
		orders = append(orders, order)
	}
	return orders, nil
}
