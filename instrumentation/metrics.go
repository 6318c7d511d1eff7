package instrumentation

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments of the storefront
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Request security
	RateLimitExceeded       metric.Int64Counter
	RateLimitStoreErrors    metric.Int64Counter
	RateLimitTrackedClients metric.Int64ObservableGauge
	CSRFValidationFailed    metric.Int64Counter
	CSRFTokensIssued        metric.Int64Counter
	SessionRedirects        metric.Int64Counter
	LoginAttempts           metric.Int64Counter

	// Storage
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram

	// Business
	OrdersPlaced metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	httpMeter := inst.Meter("http")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")
	serverMeter := inst.Meter("server")

	counters := []struct {
		meter metric.Meter
		dst   *metric.Int64Counter
		name  string
		desc  string
		unit  string
	}{
		{httpMeter, &m.HTTPRequestsTotal, "storefront.http.requests.total", "Total number of HTTP requests", "{request}"},
		{securityMeter, &m.RateLimitExceeded, "storefront.rate_limit.exceeded", "Requests rejected by the rate limiter", "{request}"},
		{securityMeter, &m.RateLimitStoreErrors, "storefront.rate_limit.store_errors", "Requests refused because the counter store failed", "{request}"},
		{securityMeter, &m.CSRFValidationFailed, "storefront.csrf.validation_failed", "Mutating requests that failed the CSRF check", "{request}"},
		{securityMeter, &m.CSRFTokensIssued, "storefront.csrf.tokens_issued", "CSRF tokens issued", "{token}"},
		{securityMeter, &m.SessionRedirects, "storefront.session.redirects", "Admin page requests redirected to login", "{request}"},
		{securityMeter, &m.LoginAttempts, "storefront.login.attempts", "Admin login attempts by result", "{attempt}"},
		{storageMeter, &m.StorageOperationTotal, "storefront.storage.operations.total", "Storage operations by result", "{operation}"},
		{serverMeter, &m.OrdersPlaced, "storefront.orders.placed", "Orders placed at checkout", "{order}"},
	}

	for _, c := range counters {
		counter, err := c.meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"storefront.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storefront.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.RateLimitTrackedClients, err = securityMeter.Int64ObservableGauge(
		"storefront.rate_limit.tracked_clients",
		metric.WithDescription("Client keys currently held by the in-memory counter store"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.tracked_clients gauge: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request. route is the matched route
// pattern, never the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(statusCode)),
	))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("route", route),
	))
}

// RecordRateLimitExceeded records a rejected request
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordRateLimitStoreError records a request refused because counters were unavailable
func (m *Metrics) RecordRateLimitStoreError(ctx context.Context) {
	m.RateLimitStoreErrors.Add(ctx, 1)
}

// RecordCSRFFailure records a failed CSRF check
func (m *Metrics) RecordCSRFFailure(ctx context.Context, reason string) {
	m.CSRFValidationFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordCSRFIssued records an issued CSRF token
func (m *Metrics) RecordCSRFIssued(ctx context.Context) {
	m.CSRFTokensIssued.Add(ctx, 1)
}

// RecordSessionRedirect records an admin page redirect to login
func (m *Metrics) RecordSessionRedirect(ctx context.Context) {
	m.SessionRedirects.Add(ctx, 1)
}

// RecordLoginAttempt records a login attempt. result is one of
// "success", "invalid_credentials", "throttled", "not_configured" or "invalid_request".
func (m *Metrics) RecordLoginAttempt(ctx context.Context, result string) {
	m.LoginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordOrderPlaced records a successful checkout
func (m *Metrics) RecordOrderPlaced(ctx context.Context) {
	m.OrdersPlaced.Add(ctx, 1)
}
