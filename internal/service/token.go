package service

import (
	"crypto/rand"
	"encoding/base64"
)

// generateToken returns an unguessable URL-safe token of n random bytes.
func generateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
