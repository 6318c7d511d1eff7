package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/giantswarm/storefront/storage"
)

const (
	// SessionCookieName is the cookie carrying the admin session token
	SessionCookieName = "admin-session"

	// DefaultSessionTTL is the admin session lifetime
	DefaultSessionTTL = time.Hour

	// DefaultAdminPrefix is the path family guarded by the session gate
	DefaultAdminPrefix = "/admin"

	// DefaultLoginPath is where unauthenticated admin page requests are sent
	DefaultLoginPath = "/admin/login"

	// DefaultAuthAPIPrefix is the authentication API, always reachable
	DefaultAuthAPIPrefix = "/api/admin"
)

// HasPathPrefix reports whether path equals prefix or lies beneath it.
// "/admin" matches "/admin" and "/admin/orders" but not "/administrator".
func HasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// GateDecision is the outcome of SessionGate.Authorize.
type GateDecision int

const (
	// GateAllow lets the request through to its handler
	GateAllow GateDecision = iota

	// GateRedirectToLogin sends the client to the login page
	GateRedirectToLogin
)

func (d GateDecision) String() string {
	switch d {
	case GateAllow:
		return "allow"
	case GateRedirectToLogin:
		return "redirect_to_login"
	default:
		return "unknown"
	}
}

// SessionGateConfig configures a SessionGate.
type SessionGateConfig struct {
	// AdminPrefix is the guarded path family (default: "/admin")
	AdminPrefix string

	// LoginPath is the login page; it and everything under it is exempt (default: "/admin/login")
	LoginPath string

	// ExemptPrefixes are authentication API paths that stay reachable without a
	// session (default: "/api/admin")
	ExemptPrefixes []string
}

// SessionGate decides whether a request to an admin page may proceed.
// A present, non-empty credential is sufficient. Deeper checks belong to
// SessionManager.Validate.
type SessionGate struct {
	adminPrefix string
	loginPath   string
	exempt      []string
}

// NewSessionGate creates a session gate.
func NewSessionGate(cfg SessionGateConfig) *SessionGate {
	if cfg.AdminPrefix == "" {
		cfg.AdminPrefix = DefaultAdminPrefix
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.ExemptPrefixes == nil {
		cfg.ExemptPrefixes = []string{DefaultAuthAPIPrefix}
	}
	return &SessionGate{
		adminPrefix: cfg.AdminPrefix,
		loginPath:   cfg.LoginPath,
		exempt:      cfg.ExemptPrefixes,
	}
}

// LoginPath returns the redirect target for unauthenticated requests.
func (g *SessionGate) LoginPath() string { return g.loginPath }

// Protects reports whether path requires a session.
func (g *SessionGate) Protects(path string) bool {
	if HasPathPrefix(path, g.loginPath) {
		return false
	}
	for _, p := range g.exempt {
		if HasPathPrefix(path, p) {
			return false
		}
	}
	return HasPathPrefix(path, g.adminPrefix)
}

// Authorize decides whether a request for path carrying credential may proceed.
func (g *SessionGate) Authorize(path, credential string) GateDecision {
	if !g.Protects(path) {
		return GateAllow
	}
	if credential == "" {
		return GateRedirectToLogin
	}
	return GateAllow
}

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	// Secure marks the cookie Secure. Set in production.
	Secure bool

	// TTL is the session lifetime (default: 1 hour)
	TTL time.Duration

	// Store, when set, records minted sessions. Validate then requires the
	// token to be known to the store, and Revoke deletes it.
	Store storage.SessionStore

	// Clock supplies the current time (default: SystemClock)
	Clock Clock

	// Rand overrides the entropy source. Tests only.
	Rand io.Reader

	// Logger is optional (default: slog.Default())
	Logger *slog.Logger
}

// SessionManager mints, reads, validates and revokes admin session credentials.
type SessionManager struct {
	secure bool
	ttl    time.Duration
	store  storage.SessionStore
	clock  Clock
	rand   io.Reader
	logger *slog.Logger
}

// NewSessionManager creates a session manager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &SessionManager{
		secure: cfg.Secure,
		ttl:    cfg.TTL,
		store:  cfg.Store,
		clock:  clockOrDefault(cfg.Clock),
		rand:   cfg.Rand,
		logger: logger,
	}
}

// ServerSide reports whether sessions are checked against a store.
func (m *SessionManager) ServerSide() bool { return m.store != nil }

// Mint creates a new session token and records it when a store is configured.
func (m *SessionManager) Mint(ctx context.Context) (string, error) {
	token, err := generateTokenFrom(m.rand, TokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if m.store != nil {
		now := m.clock.Now()
		if err := m.store.SaveSession(ctx, &storage.Session{
			Token:     token,
			CreatedAt: now,
			ExpiresAt: now.Add(m.ttl),
		}); err != nil {
			return "", fmt.Errorf("failed to record session: %w", err)
		}
		m.logger.Debug("Recorded admin session", "expires_at", now.Add(m.ttl))
	}

	return token, nil
}

// SetCookie attaches the session cookie for token to w.
func (m *SessionManager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the session cookie on the client.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Credential returns the session cookie value of r, or "".
func (m *SessionManager) Credential(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Validate reports whether token is an authenticated session. Without a
// store any non-empty token is accepted. A store failure returns false
// together with the error.
func (m *SessionManager) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if m.store == nil {
		return true, nil
	}

	session, err := m.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up session: %w", err)
	}
	return !session.IsExpired(m.clock.Now()), nil
}

// Revoke forgets token server-side. Without a store it does nothing.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if m.store == nil || token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
