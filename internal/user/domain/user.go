// Package domain defines the user account record.
package domain

import "time"

// Roles an account can hold. Role gates nothing inside the engine itself;
// it is carried in the access token so upstream authorization can consult it
// without a second lookup.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account holder. Phone is the primary login identity; Email is
// optional. Verified flags are set by the verification flow before or after
// registration.
type User struct {
	ID            string
	Phone         string
	Email         string
	Name          string
	Role          string
	PasswordHash  string
	PhoneVerified bool
	EmailVerified bool
	Disabled      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u != nil && !u.Disabled
}
