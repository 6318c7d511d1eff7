package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/storefront/storage"
)

const (
	// DefaultRateLimit is the number of requests a client may make per window
	DefaultRateLimit = 100

	// DefaultRateLimitWindow is the fixed window length
	DefaultRateLimitWindow = 15 * time.Minute
)

// Decision is the outcome of RateLimiter.Admit.
type Decision struct {
	// Allowed is false when the request must be rejected with 429
	Allowed bool

	// Key is the client key the decision was made for
	Key string

	// Count is the number of requests seen in the current window, including this one
	Count int64

	// Limit is the configured maximum per window
	Limit int64

	// ResetAt is when the current window ends
	ResetAt time.Time

	// RetryAfter is how long a rejected client should wait, rounded up to whole seconds
	RetryAfter time.Duration
}

// Remaining returns how many more requests the client may make in this window.
func (d Decision) Remaining() int64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Limit is the maximum number of requests per window. Zero uses DefaultRateLimit.
	Limit int

	// Window is the fixed window length. Zero uses DefaultRateLimitWindow.
	Window time.Duration

	// Clock supplies the current time (default: SystemClock)
	Clock Clock

	// Logger is optional (default: slog.Default())
	Logger *slog.Logger
}

// RateLimiter admits or rejects requests per client key using fixed windows.
//
// The first request from a key opens a window of Window length with count 1.
// Each further request inside the window increments the count and is rejected
// once the count exceeds Limit. The first request strictly after the window
// ends opens a new one. Counters live in the injected CounterStore, which owns
// their memory bounds and cross-instance sharing.
type RateLimiter struct {
	store  storage.CounterStore
	limit  int64
	window time.Duration
	clock  Clock
	logger *slog.Logger
}

// NewRateLimiter creates a rate limiter over store.
func NewRateLimiter(store storage.CounterStore, cfg RateLimiterConfig) *RateLimiter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultRateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}

	return &RateLimiter{
		store:  store,
		limit:  int64(cfg.Limit),
		window: cfg.Window,
		clock:  clockOrDefault(cfg.Clock),
		logger: logger,
	}
}

// Admit records one request from clientKey and decides whether it may proceed.
// A store error yields a rejecting Decision together with the error.
func (rl *RateLimiter) Admit(ctx context.Context, clientKey string) (Decision, error) {
	now := rl.clock.Now()

	counter, err := rl.store.Increment(ctx, clientKey, now, rl.window)
	if err != nil {
		return Decision{Key: clientKey, Limit: rl.limit}, fmt.Errorf("rate limit counter unavailable: %w", err)
	}

	d := Decision{
		Allowed: counter.Count <= rl.limit,
		Key:     clientKey,
		Count:   counter.Count,
		Limit:   rl.limit,
		ResetAt: counter.ResetAt,
	}

	if !d.Allowed {
		d.RetryAfter = retryAfter(now, counter.ResetAt)
		rl.logger.Debug("Rate limit exceeded",
			"count", counter.Count,
			"limit", rl.limit,
			"reset_at", counter.ResetAt)
	}

	return d, nil
}

// Limit returns the configured per-window limit.
func (rl *RateLimiter) Limit() int { return int(rl.limit) }

// Window returns the configured window length.
func (rl *RateLimiter) Window() time.Duration { return rl.window }

// retryAfter rounds the time until resetAt up to whole seconds, minimum one.
func retryAfter(now, resetAt time.Time) time.Duration {
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	secs := (wait + time.Second - 1) / time.Second
	return secs * time.Second
}
