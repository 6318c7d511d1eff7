package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for any username/password mismatch.
	// It never says which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCredentialsNotConfigured is returned when no admin credential pair is set
	ErrCredentialsNotConfigured = errors.New("admin authentication not configured")
)

// dummyPasswordHash is compared against when no hash is configured so that a
// bcrypt comparison always runs (bcrypt hash of "test").
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CredentialConfig holds the operator-provided admin credential pair.
type CredentialConfig struct {
	// Username is the admin username
	Username string

	// Password is the plaintext admin password. Ignored when PasswordHash is set.
	Password string

	// PasswordHash is an optional bcrypt hash of the admin password
	PasswordHash string
}

// CredentialChecker verifies submitted admin credentials against the
// configured pair. Comparisons run in constant time and both fields are
// always checked.
type CredentialChecker struct {
	username     string
	password     string
	passwordHash string
}

// NewCredentialChecker creates a credential checker.
func NewCredentialChecker(cfg CredentialConfig) *CredentialChecker {
	return &CredentialChecker{
		username:     cfg.Username,
		password:     cfg.Password,
		passwordHash: cfg.PasswordHash,
	}
}

// Configured reports whether a username and a password (or hash) are set.
func (c *CredentialChecker) Configured() bool {
	return c.username != "" && (c.password != "" || c.passwordHash != "")
}

// Check returns nil when username and password match the configured pair.
func (c *CredentialChecker) Check(username, password string) error {
	if !c.Configured() {
		return ErrCredentialsNotConfigured
	}

	userOK := constantTimeEqual(username, c.username)

	var passOK bool
	if c.passwordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.passwordHash), []byte(password)) == nil
	} else {
		// Keep the cost of a failed check independent of the configured mode
		_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
		passOK = constantTimeEqual(password, c.password)
	}

	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// constantTimeEqual compares SHA-256 digests so the comparison time does not
// depend on where, or whether, the lengths differ.
func constantTimeEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// HashPassword returns a bcrypt hash of password for ADMIN_PASSWORD_HASH.
// A cost of zero uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
