package security

// Event type constants for security audit logging.
const (
	// Request pipeline events

	// EventRateLimitExceeded is logged when a client exceeds its request window
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventRateLimitUnavailable is logged when the counter store fails and the request is refused
	EventRateLimitUnavailable = "rate_limit_unavailable"

	// EventSessionRedirect is logged when an unauthenticated admin page request is redirected
	EventSessionRedirect = "session_redirect"

	// EventSessionRejected is logged when an admin API request lacks a valid session
	EventSessionRejected = "session_rejected"

	// EventCSRFValidationFailed is logged when a mutating request fails the double-submit check
	EventCSRFValidationFailed = "csrf_validation_failed"

	// Admin authentication events

	// EventLoginSucceeded is logged when an admin session is minted
	EventLoginSucceeded = "login_succeeded"

	// EventLoginFailed is logged on a credential mismatch
	EventLoginFailed = "login_failed"

	// EventLoginThrottled is logged when a client exceeds the login attempt rate
	EventLoginThrottled = "login_throttled"

	// EventLogout is logged when an admin session is cleared
	EventLogout = "logout"

	// EventAuthNotConfigured is logged when a login arrives but no admin credentials are set
	EventAuthNotConfigured = "auth_not_configured"

	// Admin data events

	// EventCatalogChanged is logged when an admin creates, updates or deletes a product
	EventCatalogChanged = "catalog_changed"

	// EventOrderStatusChanged is logged when an admin changes an order's status
	EventOrderStatusChanged = "order_status_changed"

	// EventDebugEndpointBlocked is logged when the debug endpoint is requested in production
	EventDebugEndpointBlocked = "debug_endpoint_blocked"
)
