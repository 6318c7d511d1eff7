package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/internal/validation"
	"github.com/giantswarm/storefront/security"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler is a thin HTTP adapter for the storefront Server.
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandler creates a new HTTP handler
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		server: server,
		logger: logger,
		tracer: server.Instrumentation.Tracer("http"),
	}
}

func (h *Handler) production() bool {
	return h.server.Config.IsProduction()
}

func (h *Handler) metrics() *instrumentation.Metrics {
	return h.server.Instrumentation.Metrics()
}

// log returns the request-scoped logger
func (h *Handler) log(ctx context.Context) *slog.Logger {
	return security.LoggerFrom(ctx, h.logger)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v, h.production())
}

func (h *Handler) writeError(w http.ResponseWriter, e *APIError) {
	writeError(w, e, h.production())
}

// methodNotAllowed answers 405 and advertises the allowed methods.
func (h *Handler) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	h.writeError(w, ErrMethodNotAllowed())
}

// requireCSRF validates the double-submit token. On failure it writes 403
// and returns false; the caller must not process the request further.
func (h *Handler) requireCSRF(w http.ResponseWriter, r *http.Request, span trace.Span) bool {
	err := h.server.csrf.Validate(r)
	if err == nil {
		instrumentation.AddCSRFAttributes(span, "valid")
		return true
	}

	reason := "mismatch"
	if errors.Is(err, security.ErrCSRFTokenMissing) {
		reason = "missing"
	}

	ctx := r.Context()
	instrumentation.AddCSRFAttributes(span, reason)
	instrumentation.SetSpanError(span, "csrf validation failed")
	h.metrics().RecordCSRFFailure(ctx, reason)
	h.server.Auditor.LogCSRFFailure(h.server.clientKeys.ClientKey(r), r.URL.Path, reason)
	h.log(ctx).Warn("CSRF validation failed", "path", r.URL.Path, "reason", reason)

	h.writeError(w, ErrCSRFMismatch())
	return false
}

// requireAdmin checks the admin session for API requests. Unlike admin
// pages, APIs answer 401 instead of redirecting. A failing session store
// answers 503.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, span trace.Span) bool {
	ctx := r.Context()
	ok, err := h.server.sessions.Validate(ctx, h.server.sessions.Credential(r))
	if err != nil {
		h.log(ctx).Error("Session store unavailable", "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrUnavailable())
		return false
	}
	if !ok {
		instrumentation.SetSpanError(span, "unauthenticated")
		h.server.Auditor.LogEvent(security.Event{
			Type:      security.EventSessionRejected,
			ClientKey: h.server.clientKeys.ClientKey(r),
			Path:      r.URL.Path,
			RequestID: security.GetRequestID(ctx),
			Level:     slog.LevelWarn,
		})
		h.writeError(w, ErrUnauthenticated())
		return false
	}
	return true
}

// spanFromRequest returns the span started for r by its handler.
func spanFromRequest(r *http.Request) trace.Span {
	return trace.SpanFromContext(r.Context())
}

// decodeJSON decodes a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeAndValidate decodes the body into dst and validates it. It writes
// 400 and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, span trace.Span, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrBadRequest("Invalid request body"))
		return false
	}
	return h.validate(w, r, span, dst)
}

// validate runs the validator on v. It writes 400 and returns false on failure.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request, span trace.Span, v any) bool {
	err := h.server.validator.Struct(v)
	if err == nil {
		return true
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		instrumentation.SetSpanError(span, "validation failed")
		h.log(r.Context()).Debug("Request validation failed", "field", verr.Field, "rule", verr.Tag)
		h.writeError(w, ErrBadRequest(verr.Message))
		return false
	}

	h.log(r.Context()).Error("Validator failed", "error", err)
	instrumentation.RecordError(span, err)
	h.writeError(w, ErrInternal(MessageInternal))
	return false
}

// recordStorage records the duration and outcome of a storage call.
func (h *Handler) recordStorage(ctx context.Context, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	h.metrics().RecordStorageOperation(ctx, operation, result, float64(time.Since(start).Microseconds())/1000)
}

// ServeAdminAuth handles admin login (POST) and logout (DELETE).
func (h *Handler) ServeAdminAuth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.serveLogin(w, r)
	case http.MethodDelete:
		h.serveLogout(w, r)
	default:
		h.methodNotAllowed(w, http.MethodPost, http.MethodDelete)
	}
}

// serveLogin checks, in order: CSRF, login throttle, request body, that
// credentials are configured, and the credentials themselves. On success it
// mints a session and sets the admin-session cookie.
func (h *Handler) serveLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "storefront.http.admin_login")
	defer span.End()
	r = r.WithContext(ctx)

	metrics := h.metrics()
	clientKey := h.server.clientKeys.ClientKey(r)

	if !h.requireCSRF(w, r, span) {
		metrics.RecordLoginAttempt(ctx, "csrf_failed")
		return
	}

	if !h.server.throttle.Allow(clientKey) {
		metrics.RecordLoginAttempt(ctx, "throttled")
		metrics.RecordRateLimitExceeded(ctx, "login")
		instrumentation.SetSpanError(span, "login throttled")
		h.server.Auditor.LogEvent(security.Event{
			Type:      security.EventLoginThrottled,
			ClientKey: clientKey,
			Path:      r.URL.Path,
			RequestID: security.GetRequestID(ctx),
			Level:     slog.LevelWarn,
		})
		h.writeError(w, ErrLoginThrottled())
		return
	}

	var req validation.LoginRequest
	if !h.decodeAndValidate(w, r, span, &req) {
		metrics.RecordLoginAttempt(ctx, "invalid_request")
		return
	}

	if err := h.server.credentials.Check(req.Username, req.Password); err != nil {
		if errors.Is(err, security.ErrCredentialsNotConfigured) {
			h.log(ctx).Error("Admin login attempted but ADMIN_USERNAME and ADMIN_PASSWORD (or ADMIN_PASSWORD_HASH) are not set")
			metrics.RecordLoginAttempt(ctx, "not_configured")
			instrumentation.SetSpanError(span, "admin authentication not configured")
			h.server.Auditor.LogAuthNotConfigured(clientKey)
			h.writeError(w, ErrNotConfigured())
			return
		}

		metrics.RecordLoginAttempt(ctx, "invalid_credentials")
		instrumentation.SetSpanError(span, "invalid credentials")
		h.server.Auditor.LogLoginFailed(req.Username, clientKey, "invalid_credentials")
		h.writeError(w, ErrInvalidCredentials())
		return
	}

	token, err := h.server.sessions.Mint(ctx)
	if err != nil {
		h.log(ctx).Error("Failed to mint admin session", "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Authentication failed"))
		return
	}

	h.server.sessions.SetCookie(w, token)
	metrics.RecordLoginAttempt(ctx, "success")
	h.server.Auditor.LogLoginSucceeded(req.Username, clientKey)
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
	})
}

// serveLogout clears the session cookie once the CSRF check passed,
// whether or not the caller was logged in.
func (h *Handler) serveLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "storefront.http.admin_logout")
	defer span.End()
	r = r.WithContext(ctx)

	if !h.requireCSRF(w, r, span) {
		return
	}

	h.server.sessions.ClearCookie(w)

	if err := h.server.sessions.Revoke(ctx, h.server.sessions.Credential(r)); err != nil {
		h.log(ctx).Error("Failed to revoke admin session", "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInternal("Logout failed"))
		return
	}

	h.server.Auditor.LogEvent(security.Event{
		Type:      security.EventLogout,
		ClientKey: h.server.clientKeys.ClientKey(r),
		RequestID: security.GetRequestID(ctx),
		Level:     slog.LevelInfo,
	})
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logout successful",
	})
}

// ServeSessionStatus reports whether the caller holds an admin session.
func (h *Handler) ServeSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ok, err := h.server.sessions.Validate(ctx, h.server.sessions.Credential(r))
	if err != nil {
		h.log(ctx).Error("Session check failed", "error", err)
		ok = false
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"isAuthenticated": ok})
}

// ServeCSRFToken issues a CSRF token. The cookie is HttpOnly, so the token
// is also returned in the body for the client to echo in X-CSRF-Token.
func (h *Handler) ServeCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.server.csrf.IssueCookie(w)
	if err != nil {
		h.log(r.Context()).Error("Failed to issue CSRF token", "error", err)
		h.writeError(w, ErrInternal(MessageInternal))
		return
	}
	h.metrics().RecordCSRFIssued(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// ServeDebugConfig reports which configuration values are present, never
// their contents. Not available in production.
func (h *Handler) ServeDebugConfig(w http.ResponseWriter, r *http.Request) {
	if h.production() {
		h.server.Auditor.LogEvent(security.Event{
			Type:      security.EventDebugEndpointBlocked,
			ClientKey: h.server.clientKeys.ClientKey(r),
			Path:      r.URL.Path,
			RequestID: security.GetRequestID(r.Context()),
			Level:     slog.LevelWarn,
		})
		h.writeError(w, ErrForbidden(MessageDevelopmentOnly))
		return
	}

	cfg := h.server.Config
	presence := func(v string) string {
		if v == "" {
			return "Missing"
		}
		return "Present"
	}
	database := cfg.Database.Driver
	if database == "" {
		database = BackendMemory
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"environment":        cfg.Environment,
		"adminUsername":      presence(cfg.Admin.Username),
		"adminPassword":      presence(cfg.Admin.Password),
		"adminPasswordHash":  presence(cfg.Admin.PasswordHash),
		"storageBackend":     cfg.Storage.Backend,
		"databaseDriver":     database,
		"databaseDsn":        presence(cfg.Database.DSN),
		"serverSideSessions": cfg.Session.ServerSide,
		"metricsExporter":    cfg.Instrumentation.MetricsExporter,
	})
}

// ServeHealth answers liveness probes.
func (h *Handler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeNotFound answers unknown paths.
func (h *Handler) ServeNotFound(w http.ResponseWriter, _ *http.Request) {
	h.writeError(w, ErrNotFound("Not found"))
}

// ServeMethodNotAllowed answers known paths requested with the wrong method.
func (h *Handler) ServeMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	h.writeError(w, ErrMethodNotAllowed())
}
