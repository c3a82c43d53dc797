package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token's signature or claims do not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token verifies but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrMalformedToken is returned when a token cannot be parsed at all.
	ErrMalformedToken = errors.New("malformed token")
)

// SecretKeyProvider supplies the HMAC key material for access token signing.
// A rotating implementation can be swapped in without touching the codec.
type SecretKeyProvider interface {
	SigningKey() []byte
}

// StaticKey is a SecretKeyProvider holding a single fixed key.
type StaticKey []byte

// SigningKey returns the key bytes.
func (k StaticKey) SigningKey() []byte { return []byte(k) }

// AccessClaims holds JWT claims for the access token. The session ID rides in
// the registered jti claim; Role is a custom claim so upstream authorization
// can consult it without a user lookup.
type AccessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a verified access token asserts about its bearer.
type Identity struct {
	UserID    string
	SessionID string
	Role      string
}

// Codec signs and verifies access tokens with HS256. Stateless; safe for
// concurrent use.
type Codec struct {
	keys      SecretKeyProvider
	accessTTL time.Duration
}

// NewCodec returns a Codec signing with the provider's key and the given access TTL.
func NewCodec(keys SecretKeyProvider, accessTTL time.Duration) *Codec {
	return &Codec{keys: keys, accessTTL: accessTTL}
}

// AccessTTL returns the lifetime applied to signed tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// Sign issues a signed access token asserting ident, expiring at
// now + accessTTL.
func (c *Codec) Sign(ident Identity, now time.Time) (string, error) {
	claims := AccessClaims{
		Role: ident.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.UserID,
			ID:        ident.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.keys.SigningKey())
}

// Verify checks signature and expiry against now. It fails closed: any parse
// error, signature mismatch, or expiry yields a non-nil error and a zero
// Identity. Expired-but-valid tokens return ErrTokenExpired; everything else
// returns ErrInvalidToken.
func (c *Codec) Verify(token string, now time.Time) (Identity, error) {
	claims, err := c.parse(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return Identity{}, ErrTokenExpired
	}
	return Identity{UserID: claims.Subject, SessionID: claims.ID, Role: claims.Role}, nil
}

// ExtractUserID returns the subject of a token whose signature verifies,
// ignoring expiry. Returns ErrMalformedToken if the token cannot be parsed or
// its signature does not verify.
func (c *Codec) ExtractUserID(token string) (string, error) {
	claims, err := c.parse(token)
	if err != nil {
		return "", ErrMalformedToken
	}
	if claims.Subject == "" {
		return "", ErrMalformedToken
	}
	return claims.Subject, nil
}

func (c *Codec) parse(token string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.keys.SigningKey(), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
