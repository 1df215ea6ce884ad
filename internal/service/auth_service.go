package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/repository"
)

// AdminUserID is the sentinel identity of the environment-configured admin.
// It never exists in the users table.
const AdminUserID = "admin"

// Identity is the resolved caller: a user id plus the admin flag.
type Identity struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

// AuthService resolves caller identities and manages user accounts.
type AuthService struct {
	users         repository.UserRepository
	adminEmail    string
	adminPassword string
}

func NewAuthService(users repository.UserRepository, adminEmail, adminPassword string) *AuthService {
	return &AuthService{
		users:         users,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
	}
}

// Register creates an account with role "user". Email and username
// uniqueness is checked by lookup before insert; the store does not enforce
// either atomically, so a narrow race can still admit duplicates.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*entity.User, error) {
	if username == "" {
		return nil, entity.Invalid("username", "must not be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, entity.Invalid("email", "must be a valid address")
	}
	if len(password) < 6 {
		return nil, entity.Invalid("password", "must be at least 6 characters")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email taken: %w", entity.ErrConflict)
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username taken: %w", entity.ErrConflict)
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  string(hash),
		Role:      entity.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Login verifies credentials and returns the caller's identity. The
// configured admin credential is checked first and bypasses the user table
// entirely.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Identity, error) {
	if s.adminPassword != "" && email == s.adminEmail && password == s.adminPassword {
		return &Identity{UserID: AdminUserID, IsAdmin: true}, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, entity.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, entity.ErrUnauthorized
	}
	return &Identity{UserID: user.ID, IsAdmin: user.IsAdmin()}, nil
}

// Resolve re-validates a session identity on each request. A deleted user's
// still-live session dies here on the existence lookup.
func (s *AuthService) Resolve(ctx context.Context, id Identity) (*Identity, error) {
	if id.UserID == "" {
		return nil, entity.ErrUnauthorized
	}
	if id.IsAdmin && id.UserID == AdminUserID {
		return &id, nil
	}
	ok, err := s.users.Exists(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !ok {
		return nil, entity.ErrUnauthorized
	}
	return &id, nil
}

// ListUsers returns every account. Admin only; enforced at the gate.
func (s *AuthService) ListUsers(ctx context.Context) ([]entity.User, error) {
	return s.users.FindAll(ctx)
}

var userUpdatable = map[string]struct{}{
	"username": {},
	"email":    {},
	"password": {},
}

// UpdateUser applies an allow-listed partial update to an account. Callers
// may update themselves; admins may update anyone.
func (s *AuthService) UpdateUser(ctx context.Context, caller Identity, id string, attrs map[string]any) (*entity.User, error) {
	if !caller.IsAdmin && caller.UserID != id {
		return nil, entity.ErrForbidden
	}
	if len(attrs) == 0 {
		return nil, entity.Invalid("body", "no updatable fields")
	}

	clean := make(map[string]any, len(attrs))
	for name, value := range attrs {
		if _, ok := userUpdatable[name]; !ok {
			return nil, entity.Invalid(name, "not an updatable field")
		}
		str, ok := value.(string)
		if !ok || str == "" {
			return nil, entity.Invalid(name, "must be a non-empty string")
		}
		if name == "password" {
			if len(str) < 6 {
				return nil, entity.Invalid(name, "must be at least 6 characters")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(str), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
			clean[name] = string(hash)
			continue
		}
		clean[name] = str
	}
	return s.users.Update(ctx, id, clean)
}

// DeleteUser removes an account. Carts and orders are deliberately left
// behind; the admin order listing falls back to the raw user id for them.
func (s *AuthService) DeleteUser(ctx context.Context, caller Identity, id string) error {
	if !caller.IsAdmin && caller.UserID != id {
		return entity.ErrForbidden
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	slog.Info("user deleted", "user_id", id, "by", caller.UserID)
	return nil
}
