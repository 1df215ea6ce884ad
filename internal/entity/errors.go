package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule failures. The HTTP layer maps these to
// status codes; anything else surfaces as a generic internal error.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrConflict          = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")

	// ErrPartialClear reports a cart clear that removed some but not all
	// lines. Clearing is idempotent, so callers may simply retry.
	ErrPartialClear = errors.New("cart partially cleared")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for a field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
