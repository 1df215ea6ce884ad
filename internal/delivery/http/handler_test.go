package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/shop-backend/internal/cache"
	"github.com/mercadito/shop-backend/internal/messaging"
	"github.com/mercadito/shop-backend/internal/repository/memory"
	"github.com/mercadito/shop-backend/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()

	authSvc := service.NewAuthService(store.Users(), "admin@shop.test", "topsecret")
	catalogSvc := service.NewCatalogService(store.Products(), cache.Nop{})
	cartSvc := service.NewCartService(store.Products(), store.Carts())
	checkoutSvc := service.NewCheckoutService(store.Carts(), store.Orders(), store.Users(), messaging.Nop{}, "orders.placed")

	sessions := NewSessionManager("test-secret", time.Hour)
	handler := NewHandler(authSvc, catalogSvc, cartSvc, checkoutSvc, sessions)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := httptest.NewServer(EnableCORS(mux))
	t.Cleanup(srv.Close)
	return srv, store
}

// newClient returns an HTTP client with a cookie jar so sessions persist
// across requests.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func do(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) {
	t.Helper()
	resp, _ := do(t, client, http.MethodPost, baseURL+"/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterLoginCartCheckoutFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	// Admin creates a product.
	admin := newClient(t)
	login(t, admin, srv.URL, "admin@shop.test", "topsecret")

	resp, raw := do(t, admin, http.MethodPost, srv.URL+"/products", map[string]any{
		"title": "Notebook", "price": 12.50, "stock": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &product))
	require.NotEmpty(t, product.ID)

	// A shopper registers, logs in, and buys two of them.
	shopper := newClient(t)
	resp, _ = do(t, shopper, http.MethodPost, srv.URL+"/users", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	login(t, shopper, srv.URL, "ana@example.com", "hunter22")

	resp, _ = do(t, shopper, http.MethodPost, srv.URL+"/cart", map[string]any{
		"product_id": product.ID, "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw = do(t, shopper, http.MethodPost, srv.URL+"/checkout", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var receipt struct {
		OrderID string  `json:"order_id"`
		Total   float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(raw, &receipt))
	assert.NotEmpty(t, receipt.OrderID)
	assert.Equal(t, 25.00, receipt.Total)

	// The cart is empty and the order is listed.
	resp, raw = do(t, shopper, http.MethodGet, srv.URL+"/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lines []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &lines))
	assert.Empty(t, lines)

	resp, raw = do(t, shopper, http.MethodGet, srv.URL+"/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, receipt.OrderID, orders[0].ID)

	// Stock went down on the public listing.
	resp, raw = do(t, shopper, http.MethodGet, srv.URL+"/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []struct {
		Stock int `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(raw, &products))
	require.Len(t, products, 1)
	assert.Equal(t, 2, products[0].Stock)
}

func TestCartRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient(t)

	resp, _ := do(t, client, http.MethodGet, srv.URL+"/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/cart", map[string]any{"product_id": "p1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProductWritesRequireAdmin(t *testing.T) {
	srv, _ := newTestServer(t)

	shopper := newClient(t)
	resp, _ := do(t, shopper, http.MethodPost, srv.URL+"/users", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	login(t, shopper, srv.URL, "ana@example.com", "hunter22")

	resp, _ = do(t, shopper, http.MethodPost, srv.URL+"/products", map[string]any{
		"title": "Notebook", "price": 12.50, "stock": 4,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient(t)

	body := map[string]string{"username": "ana", "email": "ana@example.com", "password": "hunter22"}
	resp, _ := do(t, client, http.MethodPost, srv.URL+"/users", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body["username"] = "ana2"
	resp, _ = do(t, client, http.MethodPost, srv.URL+"/users", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCheckoutEmptyCartIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	shopper := newClient(t)
	resp, _ := do(t, shopper, http.MethodPost, srv.URL+"/users", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	login(t, shopper, srv.URL, "ana@example.com", "hunter22")

	resp, _ = do(t, shopper, http.MethodPost, srv.URL+"/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddToCartErrors(t *testing.T) {
	srv, store := newTestServer(t)

	shopper := newClient(t)
	resp, _ := do(t, shopper, http.MethodPost, srv.URL+"/users", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	login(t, shopper, srv.URL, "ana@example.com", "hunter22")

	resp, _ = do(t, shopper, http.MethodPost, srv.URL+"/cart", map[string]any{"product_id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	admin := newClient(t)
	login(t, admin, srv.URL, "admin@shop.test", "topsecret")
	resp, raw := do(t, admin, http.MethodPost, srv.URL+"/products", map[string]any{
		"title": "Notebook", "price": 12.50, "stock": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &product))

	resp, _ = do(t, shopper, http.MethodPost, srv.URL+"/cart", map[string]any{
		"product_id": product.ID, "quantity": 5,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The failed add reserved nothing.
	p, err := store.Products().FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
}

func TestGetProductByID(t *testing.T) {
	srv, _ := newTestServer(t)

	admin := newClient(t)
	login(t, admin, srv.URL, "admin@shop.test", "topsecret")
	resp, raw := do(t, admin, http.MethodPost, srv.URL+"/products", map[string]any{
		"title": "Notebook", "price": 12.50, "stock": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &product))

	anon := newClient(t)
	resp, raw = do(t, anon, http.MethodGet, srv.URL+"/products/"+product.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Notebook", got.Title)

	resp, _ = do(t, anon, http.MethodGet, srv.URL+"/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMeAnonymousAndAuthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient(t)

	resp, raw := do(t, client, http.MethodGet, srv.URL+"/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		UserID  *string `json:"user_id"`
		IsAdmin bool    `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(raw, &me))
	assert.Nil(t, me.UserID)

	login(t, client, srv.URL, "admin@shop.test", "topsecret")
	resp, raw = do(t, client, http.MethodGet, srv.URL+"/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &me))
	require.NotNil(t, me.UserID)
	assert.True(t, me.IsAdmin)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient(t)

	resp, _ := do(t, client, http.MethodPost, srv.URL+"/users", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	login(t, client, srv.URL, "ana@example.com", "hunter22")

	resp, _ = do(t, client, http.MethodGet, srv.URL+"/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, client, http.MethodPost, srv.URL+"/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, client, http.MethodGet, srv.URL+"/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminSeesAllOrders(t *testing.T) {
	srv, _ := newTestServer(t)

	admin := newClient(t)
	login(t, admin, srv.URL, "admin@shop.test", "topsecret")
	resp, raw := do(t, admin, http.MethodPost, srv.URL+"/products", map[string]any{
		"title": "Notebook", "price": 10.00, "stock": 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &product))

	for _, u := range []struct{ name, email string }{
		{"ana", "ana@example.com"},
		{"bruno", "bruno@example.com"},
	} {
		client := newClient(t)
		resp, _ := do(t, client, http.MethodPost, srv.URL+"/users", map[string]string{
			"username": u.name, "email": u.email, "password": "hunter22",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		login(t, client, srv.URL, u.email, "hunter22")

		resp, _ = do(t, client, http.MethodPost, srv.URL+"/cart", map[string]any{"product_id": product.ID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp, _ = do(t, client, http.MethodPost, srv.URL+"/checkout", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, raw = do(t, admin, http.MethodGet, srv.URL+"/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(raw, &orders))
	require.Len(t, orders, 2)

	names := []string{orders[0].Username, orders[1].Username}
	assert.ElementsMatch(t, []string{"ana", "bruno"}, names)
}
