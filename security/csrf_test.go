package security

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
)

var lowerHex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestCSRFGuard_Issue_Shape(t *testing.T) {
	g := NewCSRFGuard(CSRFConfig{})

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := g.Issue()
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		if !lowerHex64.MatchString(token) {
			t.Fatalf("token %q is not 64 lowercase hex characters", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token after %d issuances", i)
		}
		seen[token] = true
	}
}

func TestCSRFGuard_Issue_RandFailure(t *testing.T) {
	g := NewCSRFGuard(CSRFConfig{Rand: bytes.NewReader([]byte("short"))})
	if _, err := g.Issue(); err == nil {
		t.Error("expected error when the entropy source runs dry")
	}
}

func TestCSRFGuard_IssueCookie(t *testing.T) {
	tests := []struct {
		name   string
		secure bool
	}{
		{name: "development", secure: false},
		{name: "production", secure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewCSRFGuard(CSRFConfig{Secure: tt.secure})
			rr := httptest.NewRecorder()

			token, err := g.IssueCookie(rr)
			if err != nil {
				t.Fatalf("IssueCookie() error: %v", err)
			}

			cookies := rr.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("got %d cookies, want 1", len(cookies))
			}
			c := cookies[0]
			if c.Name != CSRFCookieName || c.Value != token {
				t.Errorf("cookie = %s=%s, want %s=%s", c.Name, c.Value, CSRFCookieName, token)
			}
			if !c.HttpOnly {
				t.Error("cookie must be HttpOnly")
			}
			if c.Secure != tt.secure {
				t.Errorf("Secure = %v, want %v", c.Secure, tt.secure)
			}
			if c.SameSite != http.SameSiteStrictMode {
				t.Errorf("SameSite = %v, want Strict", c.SameSite)
			}
			if c.MaxAge != 3600 {
				t.Errorf("MaxAge = %d, want 3600", c.MaxAge)
			}
			if c.Path != "/" {
				t.Errorf("Path = %q, want /", c.Path)
			}
			if got := rr.Header().Get(CSRFHeaderName); got != token {
				t.Errorf("%s header = %q, want issued token", CSRFHeaderName, got)
			}
		})
	}
}

func TestCSRFGuard_Validate(t *testing.T) {
	g := NewCSRFGuard(CSRFConfig{})
	token, err := g.Issue()
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	other, _ := g.Issue()

	tests := []struct {
		name    string
		cookie  string
		header  string
		wantErr error
	}{
		{name: "round trip", cookie: token, header: token, wantErr: nil},
		{name: "header altered", cookie: token, header: other, wantErr: ErrCSRFTokenMismatch},
		{name: "cookie altered", cookie: other, header: token, wantErr: ErrCSRFTokenMismatch},
		{name: "header truncated", cookie: token, header: token[:63], wantErr: ErrCSRFTokenMismatch},
		{name: "header missing", cookie: token, header: "", wantErr: ErrCSRFTokenMissing},
		{name: "cookie missing", cookie: "", header: token, wantErr: ErrCSRFTokenMissing},
		{name: "both missing", cookie: "", header: "", wantErr: ErrCSRFTokenMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}

			err := g.Validate(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
