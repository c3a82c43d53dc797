// Package token orchestrates issuance, validation, and rotation of
// access/refresh token pairs.
package token

import (
	"context"
	"errors"
	"time"

	"user-auth-service/internal/authctx"
	"user-auth-service/internal/clock"
	"user-auth-service/internal/security"
	sessiondomain "user-auth-service/internal/session/domain"
	sessionrepo "user-auth-service/internal/session/repository"
	"user-auth-service/internal/telemetry"
	userdomain "user-auth-service/internal/user/domain"
)

// Sentinel errors for the token service; callers map them to user-facing rejections.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrUserNotFound    = errors.New("user not found")

	// ErrInvalidToken and ErrTokenExpired are the codec's; re-exported so
	// callers depend on one package for the whole taxonomy.
	ErrInvalidToken = security.ErrInvalidToken
	ErrTokenExpired = security.ErrTokenExpired
)

// Pair holds a freshly issued access/refresh token pair. RefreshToken is the
// raw secret; it is returned to the caller once and never stored.
type Pair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	SessionID       string
	UserID          string
}

// UserRepo is the minimal user lookup needed for issuance decisions.
type UserRepo interface {
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Service implements the session state machine: issue, rotate-on-refresh,
// validate, revoke. It holds no session state between calls; every decision
// re-reads the store so a concurrent request cannot act on stale rows.
type Service struct {
	sessions sessionrepo.Repository
	users    UserRepo
	codec    *security.Codec
	clk      clock.Clock
	metrics  *telemetry.Metrics

	refreshTTL       time.Duration
	matchFingerprint bool
}

// NewService returns a token Service with the given dependencies.
// matchFingerprint enforces that refresh requests present the fingerprint the
// session was created with; when false (default policy) rotation re-binds the
// new session to the current request's fingerprint.
func NewService(
	sessions sessionrepo.Repository,
	users UserRepo,
	codec *security.Codec,
	clk clock.Clock,
	metrics *telemetry.Metrics,
	refreshTTL time.Duration,
	matchFingerprint bool,
) *Service {
	return &Service{
		sessions:         sessions,
		users:            users,
		codec:            codec,
		clk:              clk,
		metrics:          metrics,
		refreshTTL:       refreshTTL,
		matchFingerprint: matchFingerprint,
	}
}

// Issue mints a new access/refresh pair for userID and records the session
// bound to the request's fingerprint. The user must exist and be active.
func (s *Service) Issue(ctx context.Context, userID, networkAddress, clientAgent string) (*Pair, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		return nil, ErrUserNotFound
	}
	pair, err := s.createSession(ctx, userID, user.Role, networkAddress, clientAgent)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(ctx)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair, rotating on use: the
// presented token's session is deleted and a new one created. A replayed
// token no longer resolves and fails with ErrSessionNotFound, which makes
// reuse detection automatic. Under concurrent identical calls exactly one
// succeeds; the rest observe the row already gone.
func (s *Service) Refresh(ctx context.Context, refreshToken, networkAddress, clientAgent string) (*Pair, error) {
	sess, err := s.sessions.FindByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if sess == nil || !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		s.metrics.TokenRefreshed(ctx, telemetry.OutcomeNotFound)
		return nil, ErrSessionNotFound
	}

	now := s.clk.Now()
	if sess.Expired(now) {
		// Lazy cleanup; the sweep would get it eventually.
		_, _ = s.sessions.Delete(ctx, sess.ID)
		s.metrics.TokenRefreshed(ctx, telemetry.OutcomeExpired)
		return nil, ErrSessionExpired
	}

	if s.matchFingerprint && !sess.FingerprintMatches(networkAddress, clientAgent) {
		// Deliberately indistinguishable from an unknown token.
		s.metrics.TokenRefreshed(ctx, telemetry.OutcomeNotFound)
		return nil, ErrSessionNotFound
	}

	// Re-read the user: an account disabled or deleted since login must not
	// be able to keep a session alive by refreshing.
	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		_, _ = s.sessions.Delete(ctx, sess.ID)
		s.metrics.TokenRefreshed(ctx, telemetry.OutcomeNotFound)
		return nil, ErrUserNotFound
	}

	deleted, err := s.sessions.Delete(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// A concurrent refresh with the same token won the race.
		s.metrics.TokenRefreshed(ctx, telemetry.OutcomeNotFound)
		return nil, ErrSessionNotFound
	}

	pair, err := s.createSession(ctx, sess.UserID, user.Role, networkAddress, clientAgent)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenRefreshed(ctx, telemetry.OutcomeOK)
	return pair, nil
}

// ValidateAccess verifies the access token against the current time and
// returns the subject user ID. Fails with ErrTokenExpired once
// now >= issuedAt + accessTTL, and ErrInvalidToken for anything else wrong.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (string, error) {
	ident, err := s.codec.Verify(accessToken, s.clk.Now())
	if err != nil {
		return "", err
	}
	return ident.UserID, nil
}

// Authenticate validates the access token and returns a context carrying the
// bearer's user and session IDs for downstream call chains.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (context.Context, security.Identity, error) {
	ident, err := s.codec.Verify(accessToken, s.clk.Now())
	if err != nil {
		return ctx, security.Identity{}, err
	}
	return authctx.WithIdentity(ctx, ident.UserID, ident.SessionID), ident, nil
}

// ListSessions returns the user's active device contexts, for "where am I
// signed in" views.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.FindByUser(ctx, userID)
}

// RevokeByRefreshToken deletes the session the refresh token resolves to
// (logout). Unknown tokens fail with ErrSessionNotFound.
func (s *Service) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	sess, err := s.sessions.FindByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	deleted, err := s.sessions.Delete(ctx, sess.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeSession deletes the session by ID. Unknown IDs fail with ErrSessionNotFound.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	deleted, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllForUser deletes every session for userID ("sign out everywhere").
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.sessions.DeleteAllForUser(ctx, userID)
}

// SweepExpired removes sessions past their expiry. Housekeeping only; read
// paths already treat expired rows as absent.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.clk.Now())
}

func (s *Service) createSession(ctx context.Context, userID, role, networkAddress, clientAgent string) (*Pair, error) {
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	sess := &sessiondomain.Session{
		ID:               s.clk.NewID(),
		UserID:           userID,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		NetworkAddress:   networkAddress,
		ClientAgent:      clientAgent,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	accessToken, err := s.codec.Sign(security.Identity{UserID: userID, SessionID: sess.ID, Role: role}, now)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.codec.AccessTTL()),
		SessionID:       sess.ID,
		UserID:          userID,
	}, nil
}
