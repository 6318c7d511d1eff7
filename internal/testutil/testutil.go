package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockTime provides a controllable time source for deterministic testing.
// It satisfies security.Clock and is safe for concurrent use.
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// HTTPRequest is a helper for making test HTTP requests
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Cookies []*http.Cookie
	Body    string
}

// NewHTTPRequest creates a new HTTP request helper
func NewHTTPRequest(method, url string) *HTTPRequest {
	return &HTTPRequest{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *HTTPRequest) WithHeader(key, value string) *HTTPRequest {
	r.Headers[key] = value
	return r
}

// WithCookie adds a cookie to the request
func (r *HTTPRequest) WithCookie(name, value string) *HTTPRequest {
	r.Cookies = append(r.Cookies, &http.Cookie{Name: name, Value: value})
	return r
}

// WithCSRF sets both the csrf-token cookie and the X-CSRF-Token header
func (r *HTTPRequest) WithCSRF(token string) *HTTPRequest {
	return r.WithCookie("csrf-token", token).WithHeader("X-CSRF-Token", token)
}

// WithBody sets the request body
func (r *HTTPRequest) WithBody(body string) *HTTPRequest {
	r.Body = body
	return r
}

// WithJSON marshals v as the request body and sets Content-Type
func (r *HTTPRequest) WithJSON(v any) *HTTPRequest {
	b, err := json.Marshal(v)
	if err != nil {
		panic("testutil: failed to marshal request body: " + err.Error())
	}
	r.Headers["Content-Type"] = "application/json"
	r.Body = string(b)
	return r
}

// Build returns the request without executing it
func (r *HTTPRequest) Build() *http.Request {
	req := httptest.NewRequest(r.Method, r.URL, strings.NewReader(r.Body))
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	return req
}

// Do executes the HTTP request
func (r *HTTPRequest) Do(handler http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, r.Build())
	return rr
}

// ResponseCookie returns the named cookie set on the response, or nil
func ResponseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// DecodeJSON decodes the response body into a map, failing the test on error
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
	return body
}

// AssertStatus fails the test if the response status differs from want
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, want, rr.Body.String())
	}
}

// AssertJSONError fails the test unless the body is {"error": want}
func AssertJSONError(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	body := DecodeJSON(t, rr)
	if got, _ := body["error"].(string); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want any) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
