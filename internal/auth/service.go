// Package auth implements registration and credential login on top of the
// verification and token services.
package auth

import (
	"context"
	"errors"

	"user-auth-service/internal/clock"
	"user-auth-service/internal/security"
	"user-auth-service/internal/token"
	userdomain "user-auth-service/internal/user/domain"
	userrepo "user-auth-service/internal/user/repository"
)

var (
	// ErrInvalidCredentials covers both unknown identity and wrong password,
	// so login failures do not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPhoneNotVerified   = errors.New("phone not verified")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrPhoneTaken         = errors.New("phone already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// Verifier checks and consumes verified-status markers for identities.
type Verifier interface {
	ConsumeVerified(ctx context.Context, identity string) (bool, error)
}

// TokenIssuer is the slice of the token service login needs.
type TokenIssuer interface {
	Issue(ctx context.Context, userID, networkAddress, clientAgent string) (*token.Pair, error)
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Service handles account registration and password login.
type Service struct {
	users    userrepo.Repository
	hasher   *security.Hasher
	tokens   TokenIssuer
	verifier Verifier
	clk      clock.Clock
}

// NewService returns an auth Service with the given dependencies.
func NewService(users userrepo.Repository, hasher *security.Hasher, tokens TokenIssuer, verifier Verifier, clk clock.Clock) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		clk:      clk,
	}
}

// Register creates an account for a phone number that completed verification.
// The verified-status marker is consumed, so one verification admits one
// registration. The phone must not already belong to an account. New accounts
// get the base user role; promotion is an administrative action upstream.
func (s *Service) Register(ctx context.Context, phone, email, name, password string) (*userdomain.User, error) {
	ok, err := s.verifier.ConsumeVerified(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPhoneNotVerified
	}

	existing, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPhoneTaken
	}

	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	u := &userdomain.User{
		ID:            s.clk.NewID(),
		Phone:         phone,
		Email:         email,
		Name:          name,
		Role:          userdomain.RoleUser,
		PasswordHash:  hash,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the phone/password pair and issues a token pair bound to the
// request's device context.
func (s *Service) Login(ctx context.Context, phone, password, networkAddress, clientAgent string) (*token.Pair, error) {
	u, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Active() {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.tokens.Issue(ctx, u.ID, networkAddress, clientAgent)
}

// ConfirmEmail marks the user's email address verified, consuming the email's
// verified-status marker.
func (s *Service) ConfirmEmail(ctx context.Context, userID string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	ok, err := s.verifier.ConsumeVerified(ctx, u.Email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEmailNotVerified
	}
	return s.users.SetEmailVerified(ctx, u.ID, true)
}

// Logout revokes the session behind the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeByRefreshToken(ctx, refreshToken)
}

// LogoutAll revokes every session the user holds.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}
