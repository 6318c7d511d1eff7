package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
//
// Never put token values (CSRF, session) or credentials into spans. Record
// outcomes such as "csrf.result" instead.
const (
	// Request pipeline
	AttrPipelineStage = "storefront.pipeline.stage"
	AttrRateCount     = "storefront.rate_limit.count"
	AttrRateLimit     = "storefront.rate_limit.limit"
	AttrRateAllowed   = "storefront.rate_limit.allowed"
	AttrGateDecision  = "storefront.session.gate_decision"
	AttrCSRFResult    = "storefront.csrf.result"
	AttrCSRFIssued    = "storefront.csrf.issued"
	AttrClientIP      = "storefront.client_ip"

	// Catalog and orders
	AttrCollection = "storefront.collection"
	AttrProductID  = "storefront.product_id"
	AttrOrderID    = "storefront.order_id"

	// Storage
	AttrStorageOperation = "storage.operation"
	AttrStorageType      = "storage.type"

	// HTTP (in addition to standard semantic conventions)
	AttrHTTPRoute      = "http.route"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddRateLimitAttributes records a rate limiter decision on a span
func AddRateLimitAttributes(span trace.Span, count, limit int64, allowed bool) {
	SetSpanAttributes(span,
		attribute.Int64(AttrRateCount, count),
		attribute.Int64(AttrRateLimit, limit),
		attribute.Bool(AttrRateAllowed, allowed),
	)
}

// AddGateAttributes records a session gate decision on a span
func AddGateAttributes(span trace.Span, decision string) {
	SetSpanAttributes(span, attribute.String(AttrGateDecision, decision))
}

// AddCSRFAttributes records a CSRF check outcome ("valid", "missing", "mismatch")
func AddCSRFAttributes(span trace.Span, result string) {
	if result != "" {
		SetSpanAttributes(span, attribute.String(AttrCSRFResult, result))
	}
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, route string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}

// AddClientAttributes adds the client key to a span. Callers must check
// Instrumentation.ShouldLogClientIPs first.
func AddClientAttributes(span trace.Span, clientKey string) {
	if clientKey != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientKey))
	}
}
