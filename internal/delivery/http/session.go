package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/mercadito/shop-backend/internal/service"
)

const sessionName = "shop_session"

type contextKey struct{}

var identityKey contextKey

// SessionManager reads and writes the signed session cookie.
type SessionManager struct {
	store *sessions.CookieStore
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store}
}

// identity decodes the cookie into an unverified identity. A bad or missing
// cookie yields the zero Identity, which Resolve rejects.
func (m *SessionManager) identity(r *http.Request) service.Identity {
	sess, err := m.store.Get(r, sessionName)
	if err != nil {
		return service.Identity{}
	}
	userID, _ := sess.Values["user_id"].(string)
	isAdmin, _ := sess.Values["is_admin"].(bool)
	return service.Identity{UserID: userID, IsAdmin: isAdmin}
}

func (m *SessionManager) save(w http.ResponseWriter, r *http.Request, id service.Identity) error {
	sess, _ := m.store.Get(r, sessionName)
	sess.Values["user_id"] = id.UserID
	sess.Values["is_admin"] = id.IsAdmin
	return sess.Save(r, w)
}

func (m *SessionManager) clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, sessionName)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func withIdentity(ctx context.Context, id service.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func identityFrom(ctx context.Context) service.Identity {
	id, _ := ctx.Value(identityKey).(service.Identity)
	return id
}
