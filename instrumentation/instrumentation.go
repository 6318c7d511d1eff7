package instrumentation

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "storefront"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	// ExporterPrometheus selects the Prometheus pull exporter
	ExporterPrometheus = "prometheus"

	scopePrefix = "github.com/giantswarm/storefront/"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (default: "storefront")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used.
	Enabled bool

	// MetricsExporter selects the metrics exporter: "prometheus" or "" (none).
	// Ignored when Enabled is false.
	MetricsExporter string

	// LogClientIPs controls whether client keys are added to spans.
	// Client IP addresses may be personal data under GDPR.
	LogClientIPs bool

	// Resource allows custom resource attributes.
	// If nil, a resource with service name and version is created.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	// registry is set when the Prometheus exporter is active
	registry *promclient.Registry

	metrics *Metrics

	// Shutdown functions (registered during New() only)
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		if err := inst.initializeProviders(); err != nil {
			return nil, fmt.Errorf("failed to initialize providers: %w", err)
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// initializeProviders wires the SDK providers. Spans are sampled and kept
// in-process so trace IDs reach the logs; metrics go to the configured exporter.
func (i *Instrumentation) initializeProviders() error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(i.resource))
	i.tracerProvider = tp
	i.shutdownFuncs = append(i.shutdownFuncs, tp.Shutdown)

	switch i.config.MetricsExporter {
	case ExporterPrometheus:
		reg := promclient.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(i.resource),
			sdkmetric.WithReader(exporter),
		)
		i.meterProvider = mp
		i.registry = reg
		i.shutdownFuncs = append(i.shutdownFuncs, mp.Shutdown)
	case "":
		i.meterProvider = noop.NewMeterProvider()
	default:
		return fmt.Errorf("unsupported metrics exporter %q", i.config.MetricsExporter)
	}

	return nil
}

// Shutdown gracefully shuts down all instrumentation providers
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope ("http", "security", "storage").
// The full name is "github.com/giantswarm/storefront/{scope}".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope.
// The full name is "github.com/giantswarm/storefront/{scope}".
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// ShouldLogClientIPs returns whether client keys may be attached to spans
func (i *Instrumentation) ShouldLogClientIPs() bool {
	return i.config.LogClientIPs
}

// MetricsHandler serves the Prometheus exposition format. It returns nil
// when the Prometheus exporter is not active.
func (i *Instrumentation) MetricsHandler() http.Handler {
	if i.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}

// SizeCallback returns the current size of a tracked component
type SizeCallback func() int64

// RegisterCounterEntriesCallback reports the number of tracked rate-limit
// clients through the storefront.rate_limit.tracked_clients gauge.
func (i *Instrumentation) RegisterCounterEntriesCallback(entries SizeCallback) error {
	if entries == nil {
		return fmt.Errorf("callback is required")
	}

	_, err := i.Meter("security").RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(i.metrics.RateLimitTrackedClients, entries())
			return nil
		},
		i.metrics.RateLimitTrackedClients,
	)
	return err
}
