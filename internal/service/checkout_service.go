package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/messaging"
	"github.com/mercadito/shop-backend/internal/repository"
)

// CheckoutService turns a non-empty cart into an immutable order.
type CheckoutService struct {
	carts     repository.CartRepository
	orders    repository.OrderRepository
	users     repository.UserRepository
	publisher messaging.Publisher
	topic     string
}

func NewCheckoutService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	publisher messaging.Publisher,
	topic string,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		users:     users,
		publisher: publisher,
		topic:     topic,
	}
}

// Checkout converts the caller's cart into an order.
//
// Totals use the price snapshotted onto each cart line at add time, not the
// live catalog price, so a catalog change between add and checkout never
// surprises the buyer. Once the order is written it is the source of truth:
// a failure while clearing the cart is logged and the order returned anyway.
// Clearing is idempotent, so leftover lines vanish on a later clear.
func (s *CheckoutService) Checkout(ctx context.Context, userID string) (*entity.Order, error) {
	lines, err := s.carts.FindAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, entity.ErrEmptyCart
	}

	order := &entity.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     make([]entity.OrderItem, 0, len(lines)),
		CreatedAt: time.Now().UTC(),
	}
	for _, line := range lines {
		order.Items = append(order.Items, entity.OrderItem{
			ProductID: line.ProductID,
			Title:     line.Title,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
		order.Total += line.Price * float64(line.Quantity)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to write order: %w", err)
	}
	slog.Info("order placed", "order_id", order.ID, "user_id", userID, "total", order.Total)

	event := entity.OrderPlaced{
		OrderID:  order.ID,
		UserID:   userID,
		Items:    order.Items,
		Total:    order.Total,
		PlacedAt: order.CreatedAt,
	}
	if err := s.publisher.PublishEvent(ctx, s.topic, order.ID, event); err != nil {
		slog.Error("failed to publish OrderPlaced", "order_id", order.ID, "err", err)
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		// Dangling cart: the order exists but some lines remain. They are
		// removed the next time the cart is cleared.
		slog.Error("cart clear failed after order write",
			"order_id", order.ID, "user_id", userID, "err", err)
	}
	return order, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]entity.Order, error) {
	orders, err := s.orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortOrders(orders)
	return orders, nil
}

// ListAllOrders returns every order, newest first, each carrying a display
// username. A deleted owner falls back to the raw user id.
func (s *CheckoutService) ListAllOrders(ctx context.Context) ([]entity.Order, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	for i := range orders {
		name, ok := names[orders[i].UserID]
		if !ok {
			user, err := s.users.FindByID(ctx, orders[i].UserID)
			switch {
			case err == nil:
				name = user.Username
			case errors.Is(err, entity.ErrNotFound):
				name = orders[i].UserID
			default:
				return nil, fmt.Errorf("failed to resolve order owner: %w", err)
			}
			names[orders[i].UserID] = name
		}
		orders[i].Username = name
	}
	sortOrders(orders)
	return orders, nil
}

func sortOrders(orders []entity.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
