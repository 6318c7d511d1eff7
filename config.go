package storefront

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/security"
	"github.com/giantswarm/storefront/storage/sqlstore"
)

// Environment names.
const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// Storage backends for rate-limit counters and server-side sessions.
const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
	BackendRedis  = "redis"
)

// DefaultListenAddr is the address the server listens on when none is configured
const DefaultListenAddr = ":8080"

// Config holds the storefront configuration.
// Structured using composition; loaded once at startup by LoadConfig and
// passed explicitly to the server. Nothing reads the environment at request time.
type Config struct {
	// Environment is "production" or anything else.
	// Production enables Secure cookies and HSTS and hides the debug endpoint.
	// Default: "development"
	Environment string `yaml:"environment"`

	// ListenAddr is the HTTP listen address (default: ":8080")
	ListenAddr string `yaml:"listen_addr"`

	// Routes are the path families the request pipeline applies to
	Routes RouteConfig `yaml:"routes"`

	// RateLimit configures the per-client fixed-window limiter
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// LoginThrottle configures brute-force protection on the login endpoint
	LoginThrottle LoginThrottleConfig `yaml:"login_throttle"`

	// Session configures the admin session cookie and its validation depth
	Session SessionConfig `yaml:"session"`

	// CSRF configures the double-submit token cookie
	CSRF CSRFConfig `yaml:"csrf"`

	// Admin holds the admin credentials. Only read from the environment.
	Admin AdminConfig `yaml:"-"`

	// TrustedProxyCount is the number of reverse proxies appending to
	// X-Forwarded-For. Zero uses the leftmost entry.
	TrustedProxyCount int `yaml:"trusted_proxy_count"`

	// TrustRemoteAddr keys clients without identity headers by their
	// connection address instead of the shared loopback key. Enable only
	// when clients connect directly.
	TrustRemoteAddr bool `yaml:"trust_remote_addr"`

	// Storage selects where rate-limit counters and sessions live
	Storage StorageConfig `yaml:"storage"`

	// Database selects the relational store for the catalog and orders.
	// An empty Driver keeps them in memory.
	Database DatabaseConfig `yaml:"database"`

	// Instrumentation configures OpenTelemetry metrics and tracing
	Instrumentation InstrumentationConfig `yaml:"instrumentation"`

	// DisableAudit turns off security audit logging.
	// Audit events carry hashed client keys and usernames only.
	DisableAudit bool `yaml:"disable_audit"`

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger `yaml:"-"`
}

// RouteConfig holds the path families handled by the request pipeline
type RouteConfig struct {
	// APIPrefix covers the JSON API (default: "/api")
	APIPrefix string `yaml:"api_prefix"`

	// OrderPrefix covers the checkout pages. GET requests here receive a
	// fresh CSRF token (default: "/order")
	OrderPrefix string `yaml:"order_prefix"`

	// AdminPrefix covers the admin pages guarded by the session gate (default: "/admin")
	AdminPrefix string `yaml:"admin_prefix"`

	// LoginPath is the admin login page (default: "/admin/login")
	LoginPath string `yaml:"login_path"`

	// AuthAPIPrefix is the authentication API, reachable without a session
	// (default: "/api/admin")
	AuthAPIPrefix string `yaml:"auth_api_prefix"`
}

// Prefixes returns the path families the pipeline applies to.
func (r RouteConfig) Prefixes() []string {
	return []string{r.APIPrefix, r.OrderPrefix, r.AdminPrefix}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Requests is the number of requests a client may make per window (default: 100)
	Requests int `yaml:"requests"`

	// Window is the fixed window length (default: 15m)
	Window time.Duration `yaml:"window"`

	// MaxEntries caps the clients tracked by the in-memory counter store (default: 10000)
	MaxEntries int `yaml:"max_entries"`

	// SweepInterval is how often the in-memory store drops ended windows (default: 5m)
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LoginThrottleConfig holds login throttling configuration
type LoginThrottleConfig struct {
	// AttemptsPerMinute is the sustained login rate per client (default: 5)
	AttemptsPerMinute int `yaml:"attempts_per_minute"`

	// Burst is the number of attempts allowed at once (default: 5)
	Burst int `yaml:"burst"`

	// MaxEntries caps the clients tracked (default: 10000)
	MaxEntries int `yaml:"max_entries"`
}

// SessionConfig holds admin session settings
type SessionConfig struct {
	// TTL is the session cookie lifetime (default: 1h)
	TTL time.Duration `yaml:"ttl"`

	// ServerSide records minted sessions in the session store and requires
	// the gate's credential to be known there. When false a present,
	// non-empty cookie is sufficient.
	// Default: false
	ServerSide bool `yaml:"server_side"`
}

// CSRFConfig holds CSRF token settings
type CSRFConfig struct {
	// TTL is the token cookie lifetime (default: 1h)
	TTL time.Duration `yaml:"ttl"`
}

// AdminConfig holds the admin credential pair
type AdminConfig struct {
	// Username is the admin username (ADMIN_USERNAME)
	Username string

	// Password is the plaintext admin password (ADMIN_PASSWORD).
	// Ignored when PasswordHash is set.
	Password string

	// PasswordHash is a bcrypt hash of the admin password (ADMIN_PASSWORD_HASH).
	// Generate with "storefront hash-password".
	PasswordHash string
}

// StorageConfig holds counter and session storage settings
type StorageConfig struct {
	// Backend is "memory", "valkey" or "redis" (default: "memory")
	Backend string `yaml:"backend"`

	// ValkeyAddr is the Valkey address, required for the valkey backend
	ValkeyAddr string `yaml:"valkey_addr"`

	// RedisAddr is the Redis address, required for the redis backend
	RedisAddr string `yaml:"redis_addr"`

	// Password authenticates against Valkey or Redis (STORAGE_PASSWORD)
	Password string `yaml:"-"`

	// KeyPrefix namespaces keys in Valkey or Redis (default: "storefront:")
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig holds relational store settings
type DatabaseConfig struct {
	// Driver is "postgres", "sqlite3" or empty for the in-memory catalog
	Driver string `yaml:"driver"`

	// DSN is the driver-specific data source name (DATABASE_DSN)
	DSN string `yaml:"-"`
}

// InstrumentationConfig holds OpenTelemetry settings
type InstrumentationConfig struct {
	// Enabled turns on metrics and tracing
	Enabled bool `yaml:"enabled"`

	// MetricsExporter is "prometheus" or empty
	MetricsExporter string `yaml:"metrics_exporter"`

	// ServiceVersion is reported as a resource attribute
	ServiceVersion string `yaml:"service_version"`

	// LogClientIPs adds client keys to spans. Client IPs may be personal data.
	LogClientIPs bool `yaml:"log_client_ips"`
}

// IsProduction reports whether the storefront runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// LoadConfig builds the configuration from, in increasing precedence,
// defaults, a .env file in the working directory, the YAML file at path
// (skipped when path is empty) and environment variables.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config, os.LookupEnv); err != nil {
		return nil, err
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// decodeYAML decodes a config file, rejecting unknown keys.
func decodeYAML(data []byte, config *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables onto config
func applyEnv(config *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("ADMIN_USERNAME", &config.Admin.Username)
	str("ADMIN_PASSWORD", &config.Admin.Password)
	str("ADMIN_PASSWORD_HASH", &config.Admin.PasswordHash)
	str("NODE_ENV", &config.Environment)
	str("APP_ENV", &config.Environment)
	str("LISTEN_ADDR", &config.ListenAddr)
	str("STORAGE_BACKEND", &config.Storage.Backend)
	str("VALKEY_ADDR", &config.Storage.ValkeyAddr)
	str("REDIS_ADDR", &config.Storage.RedisAddr)
	str("STORAGE_PASSWORD", &config.Storage.Password)
	str("DATABASE_DRIVER", &config.Database.Driver)
	str("DATABASE_DSN", &config.Database.DSN)
	str("METRICS_EXPORTER", &config.Instrumentation.MetricsExporter)

	if config.Instrumentation.MetricsExporter != "" {
		config.Instrumentation.Enabled = true
	}

	if v, ok := lookup("RATE_LIMIT_REQUESTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_REQUESTS %q: %w", v, err)
		}
		config.RateLimit.Requests = n
	}
	if v, ok := lookup("RATE_LIMIT_WINDOW"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW %q: %w", v, err)
		}
		config.RateLimit.Window = d
	}
	if v, ok := lookup("TRUSTED_PROXY_COUNT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXY_COUNT %q: %w", v, err)
		}
		config.TrustedProxyCount = n
	}
	if v, ok := lookup("TRUST_REMOTE_ADDR"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_REMOTE_ADDR %q: %w", v, err)
		}
		config.TrustRemoteAddr = b
	}
	if v, ok := lookup("SESSION_SERVER_SIDE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_SERVER_SIDE %q: %w", v, err)
		}
		config.Session.ServerSide = b
	}

	return nil
}

// applySecureDefaults fills unset values and logs warnings for weak settings.
func applySecureDefaults(config *Config) *Config {
	applyDefaults(config)
	logSecurityWarnings(config)
	return config
}

// applyDefaults fills unset values. It is idempotent.
func applyDefaults(config *Config) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	applyRouteDefaults(&config.Routes)
	applyLimitDefaults(config)

	if config.Environment == "" {
		config.Environment = EnvironmentDevelopment
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = BackendMemory
	}
}

func applyRouteDefaults(r *RouteConfig) {
	if r.APIPrefix == "" {
		r.APIPrefix = "/api"
	}
	if r.OrderPrefix == "" {
		r.OrderPrefix = "/order"
	}
	if r.AdminPrefix == "" {
		r.AdminPrefix = security.DefaultAdminPrefix
	}
	if r.LoginPath == "" {
		r.LoginPath = security.DefaultLoginPath
	}
	if r.AuthAPIPrefix == "" {
		r.AuthAPIPrefix = security.DefaultAuthAPIPrefix
	}
}

func applyLimitDefaults(config *Config) {
	if config.RateLimit.Requests == 0 {
		config.RateLimit.Requests = security.DefaultRateLimit
	}
	if config.RateLimit.Window == 0 {
		config.RateLimit.Window = security.DefaultRateLimitWindow
	}
	if config.LoginThrottle.AttemptsPerMinute == 0 {
		config.LoginThrottle.AttemptsPerMinute = security.DefaultLoginAttemptsPerMinute
	}
	if config.LoginThrottle.Burst == 0 {
		config.LoginThrottle.Burst = security.DefaultLoginBurst
	}
	if config.Session.TTL == 0 {
		config.Session.TTL = security.DefaultSessionTTL
	}
	if config.CSRF.TTL == 0 {
		config.CSRF.TTL = security.DefaultCSRFTokenTTL
	}
}

// logSecurityWarnings logs warnings for configurations that work but are weak
func logSecurityWarnings(config *Config) {
	logger := config.Logger

	if config.Admin.Username == "" || (config.Admin.Password == "" && config.Admin.PasswordHash == "") {
		logger.Warn("⚠️  SECURITY WARNING: Admin credentials are not configured",
			"risk", "Admin login responds with 500 until configured",
			"recommendation", "Set ADMIN_USERNAME and ADMIN_PASSWORD_HASH")
	}
	if !config.IsProduction() {
		return
	}
	if config.Admin.PasswordHash == "" && config.Admin.Password != "" {
		logger.Warn("⚠️  SECURITY NOTICE: Admin password is configured in plaintext",
			"recommendation", "Set ADMIN_PASSWORD_HASH generated with 'storefront hash-password'")
	}
	if !config.Session.ServerSide {
		logger.Warn("⚠️  SECURITY NOTICE: Admin sessions are not validated server-side",
			"risk", "Any non-empty admin-session cookie passes the admin page gate",
			"recommendation", "Set SESSION_SERVER_SIDE=true")
	}
	if config.Storage.Backend == BackendMemory {
		logger.Info("Rate limit counters are kept in memory",
			"note", "Each instance counts separately; use valkey or redis when running several")
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	for name, p := range map[string]string{
		"routes.api_prefix":      c.Routes.APIPrefix,
		"routes.order_prefix":    c.Routes.OrderPrefix,
		"routes.admin_prefix":    c.Routes.AdminPrefix,
		"routes.login_path":      c.Routes.LoginPath,
		"routes.auth_api_prefix": c.Routes.AuthAPIPrefix,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/', got %q", name, p)
		}
	}

	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("rate_limit.requests must be positive, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.TrustedProxyCount < 0 {
		return fmt.Errorf("trusted_proxy_count must not be negative, got %d", c.TrustedProxyCount)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendValkey:
		if c.Storage.ValkeyAddr == "" {
			return fmt.Errorf("storage backend %q requires VALKEY_ADDR", BackendValkey)
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage backend %q requires REDIS_ADDR", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Database.Driver {
	case "":
	case sqlstore.DriverPostgres, sqlstore.DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver %q requires DATABASE_DSN", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Instrumentation.MetricsExporter {
	case "", instrumentation.ExporterPrometheus:
	default:
		return fmt.Errorf("unknown metrics exporter %q", c.Instrumentation.MetricsExporter)
	}

	return nil
}
