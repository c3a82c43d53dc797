package security

import (
	"crypto/rand"
	"crypto/subtle"
)

// GenerateCode returns a random numeric verification code of the given length
// (e.g. "482913" for length 6). Uses crypto/rand for randomness.
func GenerateCode(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, length)
	for i := 0; i < length; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}

// CodeEqual performs constant-time comparison of a submitted code with the
// stored one, so response timing reveals nothing about matching digits.
func CodeEqual(submitted, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}
