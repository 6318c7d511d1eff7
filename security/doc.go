// Package security implements the storefront's request-security mechanisms:
// per-client rate limiting, the double-submit CSRF protocol, the admin
// session gate and credential checks, plus audit logging and response
// headers.
//
// # Rate Limiting
//
// RateLimiter counts requests per client key in fixed windows held by a
// storage.CounterStore (100 requests per 15 minutes by default). The first
// request strictly after a window ends opens a new one with count 1.
//
//	limiter := security.NewRateLimiter(memory.NewCounterStore(memory.CounterStoreConfig{}),
//	    security.RateLimiterConfig{Limit: 100, Window: 15 * time.Minute})
//
//	d, err := limiter.Admit(ctx, extractor.ClientKey(r))
//	if err != nil || !d.Allowed {
//	    // 503 or 429 with Retry-After
//	}
//
// The client key comes from ClientKeyExtractor, which reads X-Forwarded-For
// and then X-Real-IP. Both headers are client-controlled unless a proxy
// overwrites them, so the limiter is an abuse deterrent and not an
// authentication boundary.
//
// LoginThrottle adds a token bucket per client on the login endpoint. Its
// memory is bounded by LRU eviction and an idle cleanup loop.
//
// # CSRF
//
// CSRFGuard issues 256-bit hex tokens in an HttpOnly csrf-token cookie and
// echoes them in the X-CSRF-Token response header. A mutating request is
// valid when its cookie and X-CSRF-Token request header are equal. No
// server-side record of issued tokens is kept.
//
// # Sessions
//
// SessionGate guards the /admin page family, exempting the login page and
// the /api/admin authentication API. A non-empty admin-session cookie is
// enough to pass the gate. SessionManager mints and clears that cookie and,
// when given a storage.SessionStore, also rejects tokens the server did not
// issue or has revoked.
//
// CredentialChecker compares submitted credentials with the configured pair
// in constant time, optionally against a bcrypt hash.
package security
