package storefront

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/giantswarm/storefront/security"
)

// Error codes carried by APIError. They appear in logs and metrics only;
// clients see the message.
const (
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeLoginThrottled     = "login_throttled"
	ErrorCodeCSRFMismatch       = "csrf_mismatch"
	ErrorCodeUnauthenticated    = "unauthenticated"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeNotConfigured      = "not_configured"
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeMethodNotAllowed   = "method_not_allowed"
	ErrorCodeUnavailable        = "unavailable"
	ErrorCodeServerError        = "server_error"
)

// Client-facing messages with a fixed wording.
const (
	MessageRateLimited        = "Rate limit exceeded. Please try again later."
	MessageLoginThrottled     = "Too many login attempts. Please try again later."
	MessageCSRFMismatch       = "CSRF token mismatch"
	MessageUnauthenticated    = "Unauthorized"
	MessageInvalidCredentials = "Invalid credentials"
	MessageNotConfigured      = "Admin authentication not configured"
	MessageUnavailable        = "Service temporarily unavailable"
	MessageInternal           = "Internal server error"
	MessageDevelopmentOnly    = "Only available in development"
	MessageMethodNotAllowed   = "Method not allowed"
)

// APIError is an error response of the storefront API.
type APIError struct {
	Code    string // error code for logs and metrics (e.g., "csrf_mismatch")
	Message string // message returned to the client as {"error": Message}
	Status  int    // HTTP status code
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Common API errors
var (
	// ErrRateLimited indicates the client exceeded its request window
	ErrRateLimited = func() *APIError {
		return NewAPIError(ErrorCodeRateLimited, MessageRateLimited, http.StatusTooManyRequests)
	}

	// ErrLoginThrottled indicates too many login attempts from one client
	ErrLoginThrottled = func() *APIError {
		return NewAPIError(ErrorCodeLoginThrottled, MessageLoginThrottled, http.StatusTooManyRequests)
	}

	// ErrCSRFMismatch indicates the CSRF cookie and header are missing or differ
	ErrCSRFMismatch = func() *APIError {
		return NewAPIError(ErrorCodeCSRFMismatch, MessageCSRFMismatch, http.StatusForbidden)
	}

	// ErrUnauthenticated indicates an admin API was called without a valid session
	ErrUnauthenticated = func() *APIError {
		return NewAPIError(ErrorCodeUnauthenticated, MessageUnauthenticated, http.StatusUnauthorized)
	}

	// ErrInvalidCredentials indicates a failed login. The message never says
	// which of username or password was wrong.
	ErrInvalidCredentials = func() *APIError {
		return NewAPIError(ErrorCodeInvalidCredentials, MessageInvalidCredentials, http.StatusUnauthorized)
	}

	// ErrNotConfigured indicates the operator has not set admin credentials
	ErrNotConfigured = func() *APIError {
		return NewAPIError(ErrorCodeNotConfigured, MessageNotConfigured, http.StatusInternalServerError)
	}

	// ErrBadRequest indicates a malformed or invalid request body
	ErrBadRequest = func(msg string) *APIError {
		return NewAPIError(ErrorCodeInvalidRequest, msg, http.StatusBadRequest)
	}

	// ErrNotFound indicates the product or order does not exist
	ErrNotFound = func(msg string) *APIError {
		return NewAPIError(ErrorCodeNotFound, msg, http.StatusNotFound)
	}

	// ErrForbidden indicates the endpoint is not available in this environment
	ErrForbidden = func(msg string) *APIError {
		return NewAPIError(ErrorCodeForbidden, msg, http.StatusForbidden)
	}

	// ErrMethodNotAllowed indicates the method is not served on this path
	ErrMethodNotAllowed = func() *APIError {
		return NewAPIError(ErrorCodeMethodNotAllowed, MessageMethodNotAllowed, http.StatusMethodNotAllowed)
	}

	// ErrUnavailable indicates a security dependency failed and the request
	// was refused rather than let through
	ErrUnavailable = func() *APIError {
		return NewAPIError(ErrorCodeUnavailable, MessageUnavailable, http.StatusServiceUnavailable)
	}

	// ErrInternal indicates a storage or other server-side failure
	ErrInternal = func(msg string) *APIError {
		return NewAPIError(ErrorCodeServerError, msg, http.StatusInternalServerError)
	}
)

// writeJSON writes v as a JSON response with the security headers set.
func writeJSON(w http.ResponseWriter, status int, v any, production bool) {
	security.SetSecurityHeaders(w, production)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes e as {"error": message}.
func writeError(w http.ResponseWriter, e *APIError, production bool) {
	writeJSON(w, e.Status, map[string]string{"error": e.Message}, production)
}

// writeRetryAfter sets Retry-After in whole seconds, at least 1.
func writeRetryAfter(w http.ResponseWriter, d time.Duration) {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
}
