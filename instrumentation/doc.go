// Package instrumentation provides OpenTelemetry metrics and tracing for the storefront.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		Enabled:         true,
//		ServiceVersion:  version,
//		MetricsExporter: instrumentation.ExporterPrometheus,
//	})
//	if err != nil {
//		return err
//	}
//	defer inst.Shutdown(context.Background())
//
//	mux.Handle("/metrics", inst.MetricsHandler())
//
// The Prometheus exporter registers into its own registry, so several
// instances (for example in tests) never collide on the default registerer.
//
// # Available Metrics
//
// HTTP:
//   - storefront.http.requests.total{method, route, status}
//   - storefront.http.request.duration{route} (ms)
//
// Request security:
//   - storefront.rate_limit.exceeded{limiter_type}: "request" or "login"
//   - storefront.rate_limit.store_errors: requests refused because counters were unavailable
//   - storefront.rate_limit.tracked_clients: gauge of in-memory counter entries
//   - storefront.csrf.validation_failed{reason}: "missing" or "mismatch"
//   - storefront.csrf.tokens_issued
//   - storefront.session.redirects
//   - storefront.login.attempts{result}
//
// Storage and business:
//   - storefront.storage.operations.total{operation, result}
//   - storefront.storage.operation.duration{operation} (ms)
//   - storefront.orders.placed
//
// # Privacy
//
// Client keys are IP addresses. They are attached to spans only when
// Config.LogClientIPs is set, and never used as metric attributes.
package instrumentation
