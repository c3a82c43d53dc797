// Package verification implements OTP challenge issuance and checking with
// resend cooldown and attempt limiting.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-auth-service/internal/clock"
	"user-auth-service/internal/security"
	"user-auth-service/internal/telemetry"
	"user-auth-service/internal/verification/domain"
	"user-auth-service/internal/verification/store"
)

// Sentinel errors for the verification flow.
var (
	ErrCodeNotFound       = errors.New("verification code not found")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrCodeMismatch       = errors.New("verification code mismatch")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrResendTooSoon      = errors.New("verification code resent too soon")
	ErrDeliveryFailed     = errors.New("verification code delivery failed")
	ErrUnsupportedChannel = errors.New("unsupported verification channel")
)

// Notifier delivers a code to a destination over one channel.
type Notifier interface {
	Send(ctx context.Context, destination, code string) error
}

// Config carries the verification policy knobs.
type Config struct {
	CodeLength     int
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	VerifiedTTL    time.Duration
}

// Service issues and checks verification codes. One pending challenge per
// identity; sending again replaces it and resets the attempt counter.
type Service struct {
	store     store.Store
	notifiers map[string]Notifier
	clk       clock.Clock
	metrics   *telemetry.Metrics
	cfg       Config
}

// NewService returns a verification Service. notifiers maps channel names
// (domain.ChannelSMS, domain.ChannelEmail) to their delivery backends.
func NewService(s store.Store, notifiers map[string]Notifier, clk clock.Clock, metrics *telemetry.Metrics, cfg Config) *Service {
	return &Service{
		store:     s,
		notifiers: notifiers,
		clk:       clk,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// SendCode generates a fresh code for the identity and delivers it over the
// channel. A previous unexpired code is replaced and its attempt count reset.
// Fails with ErrResendTooSoon inside the cooldown window, counted from the
// last send regardless of the earlier code's state. On delivery failure the
// code stays stored, so a caller who received a slow-but-delivered message can
// still verify.
func (s *Service) SendCode(ctx context.Context, identity, channel string) error {
	notifier, ok := s.notifiers[channel]
	if !ok {
		return ErrUnsupportedChannel
	}

	now := s.clk.Now()
	existing, err := s.store.Get(ctx, identity)
	if err != nil {
		return err
	}
	if existing != nil && now.Before(existing.LastSentAt.Add(s.cfg.ResendCooldown)) {
		return ErrResendTooSoon
	}

	value, err := security.GenerateCode(s.cfg.CodeLength)
	if err != nil {
		return err
	}
	code := &domain.Code{
		Identity:   identity,
		Channel:    channel,
		Value:      value,
		CreatedAt:  now,
		LastSentAt: now,
		ExpiresAt:  now.Add(s.cfg.CodeTTL),
	}
	if err := s.store.Put(ctx, code); err != nil {
		return err
	}

	if err := notifier.Send(ctx, identity, value); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	s.metrics.CodeSent(ctx, channel)
	return nil
}

// VerifyCode checks the submitted code for the identity. On success the
// challenge is consumed and a verified-status marker recorded, so a code
// verifies exactly once: under concurrent calls with the correct code, the
// store delete decides a single winner and the rest fail with ErrCodeNotFound.
// A mismatch counts against the attempt limit; the attempt that reaches the
// limit deletes the challenge and fails with ErrTooManyAttempts.
func (s *Service) VerifyCode(ctx context.Context, identity, submitted string) error {
	code, err := s.store.Get(ctx, identity)
	if err != nil {
		return err
	}
	if code == nil {
		s.metrics.CodeVerified(ctx, telemetry.OutcomeNotFound)
		return ErrCodeNotFound
	}

	now := s.clk.Now()
	if code.Expired(now) {
		_, _ = s.store.Delete(ctx, identity)
		s.metrics.CodeVerified(ctx, telemetry.OutcomeExpired)
		return ErrCodeExpired
	}

	if code.AttemptCount >= s.cfg.MaxAttempts {
		// Shouldn't normally persist past the deleting attempt, but a crashed
		// delete leaves the row; treat it as locked rather than retryable.
		if _, err := s.store.Delete(ctx, identity); err != nil {
			return err
		}
		s.metrics.CodeVerified(ctx, telemetry.OutcomeLocked)
		return ErrTooManyAttempts
	}

	if !security.CodeEqual(submitted, code.Value) {
		attempts, err := s.store.IncrementAttempt(ctx, identity)
		if err != nil {
			return err
		}
		if attempts == 0 {
			// The challenge was consumed or reset between the read and the
			// increment; report it like any other missing code.
			s.metrics.CodeVerified(ctx, telemetry.OutcomeNotFound)
			return ErrCodeNotFound
		}
		if attempts >= s.cfg.MaxAttempts {
			if _, err := s.store.Delete(ctx, identity); err != nil {
				return err
			}
			s.metrics.CodeVerified(ctx, telemetry.OutcomeLocked)
			return ErrTooManyAttempts
		}
		s.metrics.CodeVerified(ctx, telemetry.OutcomeMismatch)
		return ErrCodeMismatch
	}

	deleted, err := s.store.Delete(ctx, identity)
	if err != nil {
		return err
	}
	if !deleted {
		// A concurrent verify with the same code consumed the challenge first.
		s.metrics.CodeVerified(ctx, telemetry.OutcomeNotFound)
		return ErrCodeNotFound
	}
	if err := s.store.MarkVerified(ctx, identity, s.cfg.VerifiedTTL); err != nil {
		return err
	}
	s.metrics.CodeVerified(ctx, telemetry.OutcomeOK)
	return nil
}

// IsVerified reports whether the identity holds an unexpired verified-status
// marker without consuming it.
func (s *Service) IsVerified(ctx context.Context, identity string) (bool, error) {
	return s.store.IsVerified(ctx, identity, false)
}

// ConsumeVerified checks and consumes the identity's verified-status marker,
// so one completed verification admits exactly one downstream use.
func (s *Service) ConsumeVerified(ctx context.Context, identity string) (bool, error) {
	return s.store.IsVerified(ctx, identity, true)
}
