package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. Usernames and
// client keys are hashed before they reach the log.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Username  string
	ClientKey string
	Path      string
	RequestID string
	Level     slog.Level
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	attrs := []any{
		"event_type", event.Type,
		"client_key_hash", hashForLogging(event.ClientKey),
		"timestamp", event.Timestamp,
	}
	if event.Username != "" {
		attrs = append(attrs, "username_hash", hashForLogging(event.Username))
	}
	if event.Path != "" {
		attrs = append(attrs, "path", event.Path)
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	if len(event.Details) > 0 {
		attrs = append(attrs, "details", event.Details)
	}

	a.logger.Log(context.Background(), event.Level, "security_audit", attrs...)
}

// LogRateLimitExceeded logs a rejected request
func (a *Auditor) LogRateLimitExceeded(clientKey, path string, count, limit int64) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		ClientKey: clientKey,
		Path:      path,
		Level:     slog.LevelWarn,
		Details: map[string]any{
			"count": count,
			"limit": limit,
		},
	})
}

// LogCSRFFailure logs a failed double-submit check
func (a *Auditor) LogCSRFFailure(clientKey, path, reason string) {
	a.LogEvent(Event{
		Type:      EventCSRFValidationFailed,
		ClientKey: clientKey,
		Path:      path,
		Level:     slog.LevelWarn,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogSessionRedirect logs an unauthenticated admin page request
func (a *Auditor) LogSessionRedirect(clientKey, path string) {
	a.LogEvent(Event{
		Type:      EventSessionRedirect,
		ClientKey: clientKey,
		Path:      path,
	})
}

// LogLoginSucceeded logs a successful admin login
func (a *Auditor) LogLoginSucceeded(username, clientKey string) {
	a.LogEvent(Event{
		Type:      EventLoginSucceeded,
		Username:  username,
		ClientKey: clientKey,
	})
}

// LogLoginFailed logs a credential mismatch
func (a *Auditor) LogLoginFailed(username, clientKey, reason string) {
	a.LogEvent(Event{
		Type:      EventLoginFailed,
		Username:  username,
		ClientKey: clientKey,
		Level:     slog.LevelWarn,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAuthNotConfigured logs a login attempt while no admin credentials are
// configured. This is an operator error and is logged at Error level.
func (a *Auditor) LogAuthNotConfigured(clientKey string) {
	a.LogEvent(Event{
		Type:      EventAuthNotConfigured,
		ClientKey: clientKey,
		Level:     slog.LevelError,
		Details: map[string]any{
			"hint": "set ADMIN_USERNAME and ADMIN_PASSWORD or ADMIN_PASSWORD_HASH",
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
