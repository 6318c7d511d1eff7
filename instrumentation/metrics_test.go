package instrumentation

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newReaderInstrumentation builds an Instrumentation backed by a manual reader
// so tests can collect exact metric values.
func newReaderInstrumentation(t *testing.T) (*Instrumentation, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	inst := &Instrumentation{meterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))}
	m, err := newMetrics(inst)
	if err != nil {
		t.Fatalf("newMetrics() error = %v", err)
	}
	inst.metrics = m
	return inst, reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetrics_RecordSecurityEvents(t *testing.T) {
	inst, reader := newReaderInstrumentation(t)
	m := inst.Metrics()
	ctx := context.Background()

	m.RecordRateLimitExceeded(ctx, "request")
	m.RecordRateLimitExceeded(ctx, "login")
	m.RecordRateLimitStoreError(ctx)
	m.RecordCSRFFailure(ctx, "missing")
	m.RecordCSRFIssued(ctx)
	m.RecordCSRFIssued(ctx)
	m.RecordCSRFIssued(ctx)
	m.RecordSessionRedirect(ctx)
	m.RecordLoginAttempt(ctx, "success")
	m.RecordLoginAttempt(ctx, "invalid_credentials")

	tests := []struct {
		name string
		want int64
	}{
		{"storefront.rate_limit.exceeded", 2},
		{"storefront.rate_limit.store_errors", 1},
		{"storefront.csrf.validation_failed", 1},
		{"storefront.csrf.tokens_issued", 3},
		{"storefront.session.redirects", 1},
		{"storefront.login.attempts", 2},
	}
	for _, tt := range tests {
		if got := collectSum(t, reader, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMetrics_RecordHTTPAndStorage(t *testing.T) {
	inst, reader := newReaderInstrumentation(t)
	m := inst.Metrics()
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/api/{collection}", 200, 12.5)
	m.RecordHTTPRequest(ctx, "POST", "/api/orders", 403, 1.0)
	m.RecordStorageOperation(ctx, "create_order", "success", 3.2)
	m.RecordOrderPlaced(ctx)

	if got := collectSum(t, reader, "storefront.http.requests.total"); got != 2 {
		t.Errorf("http.requests.total = %d, want 2", got)
	}
	if got := collectSum(t, reader, "storefront.storage.operations.total"); got != 1 {
		t.Errorf("storage.operations.total = %d, want 1", got)
	}
	if got := collectSum(t, reader, "storefront.orders.placed"); got != 1 {
		t.Errorf("orders.placed = %d, want 1", got)
	}
}

func TestMetrics_NoOpBehavior(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m := inst.Metrics()
	ctx := context.Background()

	// No-op instruments accept every call
	m.RecordHTTPRequest(ctx, "GET", "/health", 200, 0.1)
	m.RecordRateLimitExceeded(ctx, "request")
	m.RecordLoginAttempt(ctx, "throttled")
	m.RecordStorageOperation(ctx, "list_products", "error", 0.5)
}
