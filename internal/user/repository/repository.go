// Package repository persists user accounts.
package repository

import (
	"context"
	"errors"

	"user-auth-service/internal/user/domain"
)

// ErrStoreUnavailable wraps transient backing-store failures.
var ErrStoreUnavailable = errors.New("user store unavailable")

// Repository is the user store contract. Lookups return nil for missing
// accounts; errors are reserved for store failures.
type Repository interface {
	Save(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	SetPhoneVerified(ctx context.Context, id string, verified bool) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
}
