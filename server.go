package storefront

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/internal/validation"
	"github.com/giantswarm/storefront/security"
	"github.com/giantswarm/storefront/storage"
)

// Dependencies are the collaborators a Server is built from.
type Dependencies struct {
	// Counters hold the rate limiter's per-client windows (required)
	Counters storage.CounterStore

	// Sessions record admin sessions. Required when Config.Session.ServerSide is set.
	Sessions storage.SessionStore

	// Products is the catalog store (required)
	Products storage.ProductStore

	// Orders is the order store (required)
	Orders storage.OrderStore

	// Instrumentation is optional. A disabled instance is created when nil.
	Instrumentation *instrumentation.Instrumentation

	// Pages renders the checkout and admin pages under Routes.OrderPrefix and
	// Routes.AdminPrefix. Optional; those paths answer 404 without it.
	Pages http.Handler

	// Clock supplies the current time (default: security.SystemClock)
	Clock security.Clock
}

// Server holds the storefront's request-security components and stores.
// Routes returns its HTTP handler.
type Server struct {
	Config          *Config
	Logger          *slog.Logger
	Instrumentation *instrumentation.Instrumentation
	Auditor         *security.Auditor

	limiter     *security.RateLimiter
	throttle    *security.LoginThrottle
	gate        *security.SessionGate
	sessions    *security.SessionManager
	csrf        *security.CSRFGuard
	credentials *security.CredentialChecker
	clientKeys  security.ClientKeyExtractor
	validator   *validation.Validator

	products storage.ProductStore
	orders   storage.OrderStore
	pages    http.Handler
	clock    security.Clock
	tracer   trace.Tracer
	newID    func() string
}

// NewServer creates a storefront server. Defaults are applied to config and
// the result is validated.
func NewServer(config *Config, deps Dependencies) (*Server, error) {
	if config == nil {
		config = &Config{}
	}
	applySecureDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if deps.Counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("product store is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if config.Session.ServerSide && deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required for server-side sessions")
	}

	inst := deps.Instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	clock := deps.Clock
	if clock == nil {
		clock = security.SystemClock
	}

	logger := config.Logger
	production := config.IsProduction()

	var sessionStore storage.SessionStore
	if config.Session.ServerSide {
		sessionStore = deps.Sessions
	}

	s := &Server{
		Config:          config,
		Logger:          logger,
		Instrumentation: inst,
		Auditor:         security.NewAuditor(logger, !config.DisableAudit),
		limiter: security.NewRateLimiter(deps.Counters, security.RateLimiterConfig{
			Limit:  config.RateLimit.Requests,
			Window: config.RateLimit.Window,
			Clock:  clock,
			Logger: logger,
		}),
		throttle: security.NewLoginThrottle(security.LoginThrottleConfig{
			AttemptsPerMinute: config.LoginThrottle.AttemptsPerMinute,
			Burst:             config.LoginThrottle.Burst,
			MaxEntries:        config.LoginThrottle.MaxEntries,
			Clock:             clock,
			Logger:            logger,
		}),
		gate: security.NewSessionGate(security.SessionGateConfig{
			AdminPrefix:    config.Routes.AdminPrefix,
			LoginPath:      config.Routes.LoginPath,
			ExemptPrefixes: []string{config.Routes.AuthAPIPrefix},
		}),
		sessions: security.NewSessionManager(security.SessionManagerConfig{
			Secure: production,
			TTL:    config.Session.TTL,
			Store:  sessionStore,
			Clock:  clock,
			Logger: logger,
		}),
		csrf: security.NewCSRFGuard(security.CSRFConfig{
			Secure: production,
			TTL:    config.CSRF.TTL,
		}),
		credentials: security.NewCredentialChecker(security.CredentialConfig{
			Username:     config.Admin.Username,
			Password:     config.Admin.Password,
			PasswordHash: config.Admin.PasswordHash,
		}),
		clientKeys: security.ClientKeyExtractor{
			TrustedProxyCount: config.TrustedProxyCount,
			UseRemoteAddr:     config.TrustRemoteAddr,
		},
		validator:  validation.New(),
		products:   deps.Products,
		orders:     deps.Orders,
		pages:      deps.Pages,
		clock:      clock,
		tracer:     inst.Tracer("http"),
		newID:      uuid.NewString,
	}

	logger.Info("Storefront server configured",
		"environment", config.Environment,
		"rate_limit", config.RateLimit.Requests,
		"rate_limit_window", config.RateLimit.Window,
		"server_side_sessions", config.Session.ServerSide,
		"admin_configured", s.credentials.Configured())

	return s, nil
}

// Close stops background work owned by the server. Stores are closed by
// their owner.
func (s *Server) Close() {
	s.throttle.Stop()
}

// Routes returns the storefront's HTTP handler.
//
// Every request gets a request ID and is measured. Requests under the
// configured route families additionally pass the security pipeline
// (see Middleware) before routing. /health and /metrics sit outside it.
func (s *Server) Routes() http.Handler {
	h := NewHandler(s, s.Logger)
	routes := s.Config.Routes
	api := strings.TrimSuffix(routes.APIPrefix, "/")
	auth := strings.TrimSuffix(routes.AuthAPIPrefix, "/")

	r := chi.NewRouter()
	r.Use(security.RequestIDMiddleware(s.Logger))
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(s.Middleware)

	r.NotFound(h.ServeNotFound)
	r.MethodNotAllowed(h.ServeMethodNotAllowed)

	r.Get("/health", h.ServeHealth)
	if mh := s.Instrumentation.MetricsHandler(); mh != nil {
		r.Method(http.MethodGet, "/metrics", mh)
	}

	r.Get(api+"/csrf", h.ServeCSRFToken)
	r.Get(api+"/debug/config", h.ServeDebugConfig)
	r.HandleFunc(auth+"/auth", h.ServeAdminAuth)
	r.Get(auth+"/session", h.ServeSessionStatus)
	r.HandleFunc(api+"/orders", h.ServeOrders)
	for _, c := range storage.Collections {
		r.HandleFunc(api+"/"+string(c), h.ServeCollection(c))
	}

	if s.pages != nil {
		for _, prefix := range []string{routes.OrderPrefix, routes.AdminPrefix} {
			prefix = strings.TrimSuffix(prefix, "/")
			r.Handle(prefix, s.pages)
			r.Handle(prefix+"/*", s.pages)
		}
	}

	return r
}
