// Package domain defines the verification code record for OTP challenges.
package domain

import "time"

// Channels over which codes are delivered.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Code is one pending OTP challenge, keyed by the destination identity
// (phone number or email address). Reissuing a code for the same identity
// replaces the previous challenge entirely.
type Code struct {
	Identity     string
	Channel      string
	Value        string
	AttemptCount int
	CreatedAt    time.Time
	LastSentAt   time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the challenge window has passed at now.
func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
