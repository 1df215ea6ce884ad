package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/service"
)

// Handler handles HTTP requests for the application.
type Handler struct {
	auth     *service.AuthService
	catalog  *service.CatalogService
	cart     *service.CartService
	checkout *service.CheckoutService
	sessions *SessionManager
}

func NewHandler(
	auth *service.AuthService,
	catalog *service.CatalogService,
	cart *service.CartService,
	checkout *service.CheckoutService,
	sessions *SessionManager,
) *Handler {
	return &Handler{
		auth:     auth,
		catalog:  catalog,
		cart:     cart,
		checkout: checkout,
		sessions: sessions,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("GET /me", h.handleMe)

	mux.HandleFunc("POST /users", h.handleRegister)
	mux.HandleFunc("GET /users", h.requireAdmin(h.handleListUsers))
	mux.HandleFunc("PUT /users/{id}", h.requireUser(h.handleUpdateUser))
	mux.HandleFunc("DELETE /users/{id}", h.requireUser(h.handleDeleteUser))

	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)
	mux.HandleFunc("POST /products", h.requireAdmin(h.handleCreateProduct))
	mux.HandleFunc("PUT /products/{id}", h.requireAdmin(h.handleUpdateProduct))
	mux.HandleFunc("DELETE /products/{id}", h.requireAdmin(h.handleDeleteProduct))

	mux.HandleFunc("GET /cart", h.requireUser(h.handleListCart))
	mux.HandleFunc("POST /cart", h.requireUser(h.handleAddToCart))
	mux.HandleFunc("DELETE /cart/{product_id}", h.requireUser(h.handleRemoveFromCart))

	mux.HandleFunc("POST /checkout", h.requireUser(h.handleCheckout))
	mux.HandleFunc("GET /orders", h.requireUser(h.handleListOrders))
}

// --- middleware ---

// requireUser resolves the session into a verified identity. Sessions of
// deleted users fail the existence check inside Resolve.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.auth.Resolve(r.Context(), h.sessions.identity(r))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(withIdentity(r.Context(), *id)))
	}
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r.Context()).IsAdmin {
			writeError(w, entity.ErrForbidden)
			return
		}
		next(w, r)
	})
}

// EnableCORS is a middleware to allow a browser frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, entity.Invalid("body", "malformed JSON"))
		return
	}

	id, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.sessions.save(w, r, *id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "login ok",
		"is_admin": id.IsAdmin,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.clear(w, r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout ok"})
}

type meResponse struct {
	UserID  *string `json:"user_id"`
	IsAdmin bool    `json:"is_admin"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.Resolve(r.Context(), h.sessions.identity(r))
	if err != nil {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}
	writeJSON(w, http.StatusOK, meResponse{UserID: &id.UserID, IsAdmin: id.IsAdmin})
}

// --- users ---

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, entity.Invalid("body", "malformed JSON"))
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []entity.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		writeError(w, entity.Invalid("body", "malformed JSON"))
		return
	}

	user, err := h.auth.UpdateUser(r.Context(), identityFrom(r.Context()), r.PathValue("id"), attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	target := r.PathValue("id")

	if err := h.auth.DeleteUser(r.Context(), id, target); err != nil {
		writeError(w, err)
		return
	}
	if id.UserID == target {
		h.sessions.clear(w, r)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// --- products ---

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []entity.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, entity.Invalid("body", "malformed JSON"))
		return
	}

	product, err := h.catalog.Create(r.Context(), req.Title, req.Price, req.Stock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		writeError(w, entity.Invalid("body", "malformed JSON"))
		return
	}

	product, err := h.catalog.Update(r.Context(), r.PathValue("id"), attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// --- cart ---

func (h *Handler) handleListCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.cart.List(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if lines == nil {
		lines = []entity.CartLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	req := addToCartRequest{Quantity: 1} // quantity defaults to 1 when omitted
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, entity.Invalid("body", "malformed JSON"))
		return
	}
	if req.ProductID == "" {
		writeError(w, entity.Invalid("product_id", "must not be empty"))
		return
	}

	line, err := h.cart.Add(r.Context(), identityFrom(r.Context()).UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID := identityFrom(r.Context()).UserID
	if err := h.cart.Remove(r.Context(), userID, r.PathValue("product_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "removed"})
}

// --- checkout / orders ---

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Checkout(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id": order.ID,
		"total":    order.Total,
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var orders []entity.Order
	var err error
	if id.IsAdmin {
		orders, err = h.checkout.ListAllOrders(r.Context())
	} else {
		orders, err = h.checkout.ListOrders(r.Context(), id.UserID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrInsufficientStock), errors.Is(err, entity.ErrEmptyCart):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, entity.ErrForbidden):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
