// Package domain defines the session record for refresh-token-bound device contexts.
package domain

import "time"

// Session represents one authenticated device context. It is created on login,
// replaced on every refresh (rotation-on-use), and deleted on logout, expiry,
// or revocation. Only the SHA-256 hash of the refresh token is stored.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	NetworkAddress   string
	ClientAgent      string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the session's refresh window has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// FingerprintMatches reports whether the presented network address and client
// agent equal the ones captured at creation.
func (s *Session) FingerprintMatches(networkAddress, clientAgent string) bool {
	return s.NetworkAddress == networkAddress && s.ClientAgent == clientAgent
}
