package storefront

import (
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/security"
)

// inPipeline reports whether path belongs to one of the configured route families.
func (s *Server) inPipeline(path string) bool {
	for _, prefix := range s.Config.Routes.Prefixes() {
		if security.HasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// cleanPath returns the canonical form of p: rooted, without "." or ".."
// elements or repeated slashes, keeping a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// Middleware runs the request-security pipeline ahead of the handlers:
//
//  1. Rate limit by client key. Rejected requests get 429 with Retry-After.
//     A failing counter store rejects with 503.
//  2. For admin pages, the session gate. Unauthenticated requests are
//     redirected (302) to the login page.
//  3. For GET requests under the order prefix, a fresh CSRF token is issued
//     as a cookie.
//
// Requests for a non-canonical path (".." elements, repeated slashes) are
// first redirected (301) to the cleaned path. Paths outside the configured
// route families then pass through untouched.
func (s *Server) Middleware(next http.Handler) http.Handler {
	production := s.Config.IsProduction()
	metrics := s.Instrumentation.Metrics()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if clean := cleanPath(path); clean != path {
			target := clean
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			security.SetSecurityHeaders(w, production)
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		if !s.inPipeline(path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := s.tracer.Start(r.Context(), "storefront.pipeline")
		defer span.End()
		r = r.WithContext(ctx)

		logger := security.LoggerFrom(ctx, s.Logger)
		requestID := security.GetRequestID(ctx)
		clientKey := s.clientKeys.ClientKey(r)
		if s.Instrumentation.ShouldLogClientIPs() {
			instrumentation.AddClientAttributes(span, clientKey)
		}

		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrPipelineStage, "rate_limit"))
		decision, err := s.limiter.Admit(ctx, clientKey)
		if err != nil {
			logger.Error("Rate limit store unavailable, refusing request", "error", err)
			instrumentation.RecordError(span, err)
			metrics.RecordRateLimitStoreError(ctx)
			s.Auditor.LogEvent(security.Event{
				Type:      security.EventRateLimitUnavailable,
				ClientKey: clientKey,
				Path:      path,
				RequestID: requestID,
				Level:     slog.LevelError,
			})
			writeError(w, ErrUnavailable(), production)
			return
		}

		instrumentation.AddRateLimitAttributes(span, decision.Count, decision.Limit, decision.Allowed)
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining(), 10))

		if !decision.Allowed {
			instrumentation.SetSpanError(span, "rate limit exceeded")
			metrics.RecordRateLimitExceeded(ctx, "client")
			s.Auditor.LogRateLimitExceeded(clientKey, path, decision.Count, decision.Limit)
			writeRetryAfter(w, decision.RetryAfter)
			writeError(w, ErrRateLimited(), production)
			return
		}

		if s.gate.Protects(path) {
			instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrPipelineStage, "session_gate"))
			gateDecision := s.authorizePage(r, clientKey)
			instrumentation.AddGateAttributes(span, gateDecision.String())

			if gateDecision == security.GateRedirectToLogin {
				metrics.RecordSessionRedirect(ctx)
				s.Auditor.LogSessionRedirect(clientKey, path)
				security.SetSecurityHeaders(w, production)
				http.Redirect(w, r, s.gate.LoginPath(), http.StatusFound)
				return
			}
		}

		if r.Method == http.MethodGet && security.HasPathPrefix(path, s.Config.Routes.OrderPrefix) {
			instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrPipelineStage, "csrf_issue"))
			if _, err := s.csrf.IssueCookie(w); err != nil {
				logger.Error("Failed to issue CSRF token", "error", err)
				instrumentation.RecordError(span, err)
				writeError(w, ErrInternal(MessageInternal), production)
				return
			}
			metrics.RecordCSRFIssued(ctx)
			instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrCSRFIssued, true))
		}

		instrumentation.SetSpanSuccess(span)
		next.ServeHTTP(w, r)
	})
}

// authorizePage applies the session gate and, for server-side sessions,
// the store lookup. A failing store redirects like a missing session.
func (s *Server) authorizePage(r *http.Request, clientKey string) security.GateDecision {
	credential := s.sessions.Credential(r)
	decision := s.gate.Authorize(r.URL.Path, credential)
	if decision != security.GateAllow || !s.sessions.ServerSide() {
		return decision
	}

	ctx := r.Context()
	ok, err := s.sessions.Validate(ctx, credential)
	if err != nil {
		security.LoggerFrom(ctx, s.Logger).Error("Session store unavailable, redirecting to login", "error", err)
	}
	if !ok {
		s.Auditor.LogEvent(security.Event{
			Type:      security.EventSessionRejected,
			ClientKey: clientKey,
			Path:      r.URL.Path,
			RequestID: security.GetRequestID(ctx),
			Level:     slog.LevelWarn,
		})
		return security.GateRedirectToLogin
	}
	return security.GateAllow
}

// observe logs each request and records HTTP metrics by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	metrics := s.Instrumentation.Metrics()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		durationMs := float64(time.Since(start).Microseconds()) / 1000

		metrics.RecordHTTPRequest(r.Context(), r.Method, route, status, durationMs)
		security.LoggerFrom(r.Context(), s.Logger).Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"duration_ms", durationMs)
	})
}
