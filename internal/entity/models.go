package entity

import (
	"time"
)

// Role values for User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. Password holds the bcrypt hash and is never
// serialized in responses.
type User struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Username  string    `json:"username" dynamodbav:"username"`
	Email     string    `json:"email" dynamodbav:"email"`
	Password  string    `json:"-" dynamodbav:"password"`
	Role      string    `json:"role" dynamodbav:"role"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Product represents a product in the catalog. Stock is the single source
// of truth for availability and is only mutated through cart operations.
type Product struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Title     string    `json:"title" dynamodbav:"title"`
	Price     float64   `json:"price" dynamodbav:"price"`
	Stock     int       `json:"stock" dynamodbav:"stock"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// CartLine is a (user, product) quantity reservation. Title and price are
// copied from the product at add time; later catalog edits do not touch
// them, so cart totals may diverge from the current catalog price.
type CartLine struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	ProductID string    `json:"product_id" dynamodbav:"product_id"`
	Quantity  int       `json:"quantity" dynamodbav:"quantity"`
	Title     string    `json:"title" dynamodbav:"title"`
	Price     float64   `json:"price" dynamodbav:"price"`
	AddedAt   time.Time `json:"added_at" dynamodbav:"added_at"`
}

// OrderItem is a line item within an order.
type OrderItem struct {
	ProductID string  `json:"product_id" dynamodbav:"product_id"`
	Title     string  `json:"title" dynamodbav:"title"`
	Price     float64 `json:"price" dynamodbav:"price"`
	Quantity  int     `json:"quantity" dynamodbav:"quantity"`
}

// Order is a customer order. Immutable once created.
type Order struct {
	ID        string      `json:"id" dynamodbav:"id"`
	UserID    string      `json:"user_id" dynamodbav:"user_id"`
	Items     []OrderItem `json:"items" dynamodbav:"items"`
	Total     float64     `json:"total" dynamodbav:"total"`
	CreatedAt time.Time   `json:"created_at" dynamodbav:"created_at"`

	// Username is filled by the admin listing only; not persisted. The
	// owner may have been deleted, in which case it falls back to UserID.
	Username string `json:"username,omitempty" dynamodbav:"-"`
}

// --- Events ---

// OrderPlaced is published after an order has been durably written.
type OrderPlaced struct {
	OrderID  string      `json:"order_id"`
	UserID   string      `json:"user_id"`
	Items    []OrderItem `json:"items"`
	Total    float64     `json:"total"`
	PlacedAt time.Time   `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }
