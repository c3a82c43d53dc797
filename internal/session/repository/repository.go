// Package repository persists sessions keyed by refresh token hash.
package repository

import (
	"context"
	"errors"
	"time"

	"user-auth-service/internal/session/domain"
)

// ErrStoreUnavailable wraps transient backing-store failures (timeout,
// connection loss). Callers may retry with backoff; the services never retry
// themselves so rotation stays exactly-once.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Repository is the session store contract. Lookups by refresh token are
// equality-exact on the stored hash. Delete reports whether a row was actually
// removed so that concurrent rotations of the same token have exactly one
// winner.
type Repository interface {
	// Save persists a new session.
	Save(ctx context.Context, s *domain.Session) error
	// FindByRefreshTokenHash returns the session for the hash, or nil if absent.
	FindByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// FindByUser returns all sessions belonging to userID.
	FindByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// Delete removes the session by ID and reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteAllForUser removes every session belonging to userID.
	DeleteAllForUser(ctx context.Context, userID string) error
	// DeleteExpired removes sessions whose expiry is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
