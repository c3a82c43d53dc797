// Package store persists pending verification codes and verified-status markers.
package store

import (
	"context"
	"errors"
	"time"

	"user-auth-service/internal/verification/domain"
)

// ErrStoreUnavailable wraps transient backing-store failures. Distinct from a
// missing code, which reads report as nil.
var ErrStoreUnavailable = errors.New("verification store unavailable")

// Store is the verification code store contract. One code per identity;
// Put replaces any previous challenge for the same identity. Expiry is
// passive: Get may return a code past its ExpiresAt, and callers must treat
// such entries as dead (the service reports them expired and deletes them).
type Store interface {
	// Put saves the code, replacing any existing one for the identity.
	Put(ctx context.Context, c *domain.Code) error
	// Get returns the code for the identity, or nil if absent.
	Get(ctx context.Context, identity string) (*domain.Code, error)
	// IncrementAttempt bumps the attempt counter and returns the new count.
	// Returns 0 without creating anything when no challenge exists, so a
	// concurrent consume cannot leave a stray counter behind.
	IncrementAttempt(ctx context.Context, identity string) (int, error)
	// Delete removes the code for the identity and reports whether one was
	// actually removed, so concurrent consumers of the same challenge have
	// exactly one winner.
	Delete(ctx context.Context, identity string) (bool, error)
	// MarkVerified records that the identity passed verification, for ttl.
	MarkVerified(ctx context.Context, identity string, ttl time.Duration) error
	// IsVerified reports whether an unexpired verified marker exists, and
	// consumes it when consume is true.
	IsVerified(ctx context.Context, identity string, consume bool) (bool, error)
}
