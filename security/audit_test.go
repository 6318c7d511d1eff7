package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTestAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewAuditor(logger, enabled), &buf
}

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{name: "enabled with logger", logger: slog.Default(), enabled: true},
		{name: "disabled with logger", logger: slog.Default(), enabled: false},
		{name: "enabled with nil logger", logger: nil, enabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			if auditor.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", auditor.enabled, tt.enabled)
			}
			if auditor.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

func TestAuditor_LogEvent_Disabled(t *testing.T) {
	auditor, buf := newTestAuditor(false)
	auditor.LogEvent(Event{Type: "test_event", ClientKey: "192.168.1.1"})
	if buf.Len() != 0 {
		t.Errorf("disabled auditor logged %q", buf.String())
	}
}

func TestAuditor_HashesPII(t *testing.T) {
	auditor, buf := newTestAuditor(true)

	auditor.LogLoginFailed("shop-admin", "192.168.1.1", "invalid credentials")

	out := buf.String()
	if strings.Contains(out, "shop-admin") {
		t.Error("username must not appear in plaintext")
	}
	if strings.Contains(out, "192.168.1.1") {
		t.Error("client key must not appear in plaintext")
	}
	if !strings.Contains(out, "username_hash="+hashForLogging("shop-admin")) {
		t.Errorf("expected hashed username in %q", out)
	}
	if !strings.Contains(out, "event_type="+EventLoginFailed) {
		t.Errorf("expected event type in %q", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("login failure should be logged at WARN: %q", out)
	}
}

func TestAuditor_Events(t *testing.T) {
	tests := []struct {
		name      string
		log       func(a *Auditor)
		wantType  string
		wantLevel string
	}{
		{
			name:      "rate limit",
			log:       func(a *Auditor) { a.LogRateLimitExceeded("10.0.0.1", "/api/orders", 101, 100) },
			wantType:  EventRateLimitExceeded,
			wantLevel: "WARN",
		},
		{
			name:      "csrf",
			log:       func(a *Auditor) { a.LogCSRFFailure("10.0.0.1", "/api/orders", "mismatch") },
			wantType:  EventCSRFValidationFailed,
			wantLevel: "WARN",
		},
		{
			name:      "session redirect",
			log:       func(a *Auditor) { a.LogSessionRedirect("10.0.0.1", "/admin") },
			wantType:  EventSessionRedirect,
			wantLevel: "INFO",
		},
		{
			name:      "login succeeded",
			log:       func(a *Auditor) { a.LogLoginSucceeded("admin", "10.0.0.1") },
			wantType:  EventLoginSucceeded,
			wantLevel: "INFO",
		},
		{
			name:      "auth not configured",
			log:       func(a *Auditor) { a.LogAuthNotConfigured("10.0.0.1") },
			wantType:  EventAuthNotConfigured,
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor, buf := newTestAuditor(true)
			tt.log(auditor)

			out := buf.String()
			if !strings.Contains(out, "event_type="+tt.wantType) {
				t.Errorf("expected event_type=%s in %q", tt.wantType, out)
			}
			if !strings.Contains(out, "level="+tt.wantLevel) {
				t.Errorf("expected level=%s in %q", tt.wantLevel, out)
			}
		})
	}
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q", got)
	}
	h := hashForLogging("sensitive")
	if len(h) != 16 {
		t.Errorf("hash length = %d, want 16", len(h))
	}
	if h != hashForLogging("sensitive") {
		t.Error("hash should be deterministic")
	}
}
