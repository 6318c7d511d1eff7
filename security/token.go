package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// TokenBytes is the entropy of CSRF and session tokens (256 bits).
const TokenBytes = 32

// GenerateToken returns n random bytes from crypto/rand, hex-encoded in lowercase.
func GenerateToken(n int) (string, error) {
	return generateTokenFrom(rand.Reader, n)
}

func generateTokenFrom(r io.Reader, n int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
