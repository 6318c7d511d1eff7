package security

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	// CSRFCookieName is the cookie carrying the issued token
	CSRFCookieName = "csrf-token"

	// CSRFHeaderName is the header a client echoes the token in
	CSRFHeaderName = "X-CSRF-Token"

	// DefaultCSRFTokenTTL is the cookie lifetime
	DefaultCSRFTokenTTL = time.Hour
)

var (
	// ErrCSRFTokenMissing is returned when the cookie or header is absent
	ErrCSRFTokenMissing = errors.New("csrf token missing")

	// ErrCSRFTokenMismatch is returned when the cookie and header differ
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// CSRFConfig configures a CSRFGuard.
type CSRFConfig struct {
	// Secure marks the cookie Secure. Set in production.
	Secure bool

	// TTL is the cookie lifetime (default: 1 hour)
	TTL time.Duration

	// Path is the cookie path (default: "/")
	Path string

	// Rand overrides the entropy source. Tests only.
	Rand io.Reader
}

// CSRFGuard implements the stateless double-submit cookie protocol. The
// server keeps no record of issued tokens: a request is valid when the
// cookie and the header carry the same value.
type CSRFGuard struct {
	secure bool
	ttl    time.Duration
	path   string
	rand   io.Reader
}

// NewCSRFGuard creates a CSRF guard.
func NewCSRFGuard(cfg CSRFConfig) *CSRFGuard {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCSRFTokenTTL
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CSRFGuard{
		secure: cfg.Secure,
		ttl:    cfg.TTL,
		path:   cfg.Path,
		rand:   cfg.Rand,
	}
}

// Issue returns a fresh token: 32 random bytes as 64 lowercase hex characters.
func (g *CSRFGuard) Issue() (string, error) {
	return generateTokenFrom(g.rand, TokenBytes)
}

// Cookie builds the csrf-token cookie for token.
func (g *CSRFGuard) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     g.path,
		MaxAge:   int(g.ttl.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// IssueCookie issues a token and attaches it to w. The token is also echoed
// in the X-CSRF-Token response header because the cookie is HttpOnly and
// page scripts need a copy to send back.
func (g *CSRFGuard) IssueCookie(w http.ResponseWriter) (string, error) {
	token, err := g.Issue()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, g.Cookie(token))
	w.Header().Set(CSRFHeaderName, token)
	return token, nil
}

// Validate returns nil when the request's csrf-token cookie and X-CSRF-Token
// header are both present and equal.
func (g *CSRFGuard) Validate(r *http.Request) error {
	header := r.Header.Get(CSRFHeaderName)
	if header == "" {
		return ErrCSRFTokenMissing
	}

	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return ErrCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
		return ErrCSRFTokenMismatch
	}
	return nil
}
