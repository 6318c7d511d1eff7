package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/giantswarm/storefront/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Redis keys
	DefaultKeyPrefix = "storefront:"

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second
)

// incrementWindow atomically counts one request in a fixed window and
// returns {count, remaining_ms}. See storage/valkey for the key contract.
var incrementWindow = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Config holds configuration for the Redis storage backend.
type Config struct {
	// Addr is the Redis server address (required), e.g., "localhost:6379"
	Addr string

	// Password is the optional password for Redis authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "storefront:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Redis-backed CounterStore and SessionStore.
type Store struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.CounterStore = (*Store)(nil)
	_ storage.SessionStore = (*Store)(nil)
)

// New connects to Redis and verifies the connection with PING.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: cfg.TLS,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Connected to Redis storage",
		"address", cfg.Addr,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) counterKey(clientKey string) string {
	return s.prefix + "ratelimit:" + clientKey
}

func (s *Store) sessionKey(token string) string {
	return s.prefix + "session:" + storage.SessionKey(token)
}

// Increment implements storage.CounterStore.
func (s *Store) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (storage.WindowCounter, error) {
	if window < time.Millisecond {
		return storage.WindowCounter{}, fmt.Errorf("%w: window must be at least 1ms", storage.ErrInvalidInput)
	}

	result, err := incrementWindow.Run(ctx, s.client, []string{s.counterKey(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return storage.WindowCounter{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if len(result) != 2 {
		return storage.WindowCounter{}, fmt.Errorf("unexpected rate limit script result length %d", len(result))
	}

	return storage.WindowCounter{
		Key:     key,
		Count:   result[0],
		ResetAt: now.Add(time.Duration(result[1]) * time.Millisecond),
	}, nil
}

// Reset implements storage.CounterStore.
func (s *Store) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.counterKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

type sessionJSON struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SaveSession implements storage.SessionStore.
func (s *Store) SaveSession(ctx context.Context, session *storage.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("%w: session token is required", storage.ErrInvalidInput)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", storage.ErrInvalidInput)
	}

	data, err := json.Marshal(sessionJSON{CreatedAt: session.CreatedAt, ExpiresAt: session.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.sessionKey(session.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession implements storage.SessionStore.
func (s *Store) GetSession(ctx context.Context, token string) (*storage.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session := &storage.Session{Token: token, CreatedAt: j.CreatedAt, ExpiresAt: j.ExpiresAt}
	if session.IsExpired(time.Now()) {
		return nil, storage.ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession implements storage.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
