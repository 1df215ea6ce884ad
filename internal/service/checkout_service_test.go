package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/repository/memory"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func newCheckoutFixture(t *testing.T) (*memory.Store, *CartService, *CheckoutService, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &recordingPublisher{}
	cartSvc := NewCartService(store.Products(), store.Carts())
	checkoutSvc := NewCheckoutService(store.Carts(), store.Orders(), store.Users(), publisher, "orders.placed")
	return store, cartSvc, checkoutSvc, publisher
}

func TestCheckoutEmptyCart(t *testing.T) {
	_, _, checkoutSvc, publisher := newCheckoutFixture(t)

	order, err := checkoutSvc.Checkout(context.Background(), "u1")
	assert.ErrorIs(t, err, entity.ErrEmptyCart)
	assert.Nil(t, order)
	assert.Empty(t, publisher.events)
}

func TestCheckoutTotalsAndClearsCart(t *testing.T) {
	ctx := context.Background()
	store, cartSvc, checkoutSvc, publisher := newCheckoutFixture(t)
	seedProduct(t, store, "p1", 5.00, 10)
	seedProduct(t, store, "p2", 10.00, 10)

	_, err := cartSvc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	_, err = cartSvc.Add(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	order, err := checkoutSvc.Checkout(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 20.00, order.Total)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "u1", order.UserID)
	assert.NotEmpty(t, order.ID)

	lines, err := cartSvc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines, "cart must be empty after checkout")

	orders, err := checkoutSvc.ListOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	require.Len(t, publisher.events, 1)
	event, ok := publisher.events[0].(entity.OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, order.ID, event.OrderID)
	assert.Equal(t, "orders.placed", publisher.topics[0])
}

func TestCheckoutHonorsSnapshotPrice(t *testing.T) {
	ctx := context.Background()
	store, cartSvc, checkoutSvc, _ := newCheckoutFixture(t)
	seedProduct(t, store, "p1", 5.00, 10)

	_, err := cartSvc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	// Price changes mid-cart must not affect the order total.
	_, err = store.Products().Update(ctx, "p1", map[string]any{"price": 50.00})
	require.NoError(t, err)

	order, err := checkoutSvc.Checkout(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10.00, order.Total)
}

func TestCheckoutDanglingCartOnClearFailure(t *testing.T) {
	ctx := context.Background()
	store, cartSvc, checkoutSvc, _ := newCheckoutFixture(t)
	seedProduct(t, store, "p1", 5.00, 10)
	seedProduct(t, store, "p2", 10.00, 10)

	_, err := cartSvc.Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	_, err = cartSvc.Add(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	store.ClearAfter = 1
	order, err := checkoutSvc.Checkout(ctx, "u1")
	require.NoError(t, err, "the order is durable; a clear failure is degraded, not fatal")
	require.NotNil(t, order)

	// One line survived the partial clear: the dangling cart.
	lines, err := cartSvc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	orders, err := checkoutSvc.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestListAllOrdersEnrichesUsername(t *testing.T) {
	ctx := context.Background()
	store, cartSvc, checkoutSvc, _ := newCheckoutFixture(t)
	seedProduct(t, store, "p1", 5.00, 10)

	require.NoError(t, store.Users().Create(ctx, &entity.User{ID: "u1", Username: "ana"}))
	require.NoError(t, store.Users().Create(ctx, &entity.User{ID: "u2", Username: "bruno"}))

	_, err := cartSvc.Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	_, err = checkoutSvc.Checkout(ctx, "u1")
	require.NoError(t, err)

	_, err = cartSvc.Add(ctx, "u2", "p1", 1)
	require.NoError(t, err)
	_, err = checkoutSvc.Checkout(ctx, "u2")
	require.NoError(t, err)

	// Deleting u2 must not break the admin listing; it falls back to the id.
	require.NoError(t, store.Users().Delete(ctx, "u2"))

	orders, err := checkoutSvc.ListAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	byUser := make(map[string]string)
	for _, order := range orders {
		byUser[order.UserID] = order.Username
	}
	assert.Equal(t, "ana", byUser["u1"])
	assert.Equal(t, "u2", byUser["u2"])
}
