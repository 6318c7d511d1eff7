package valkey

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/giantswarm/storefront/storage"
)

// luaIncrementWindow atomically counts one request in a fixed window.
//
// KEYS[1] = counter key (e.g., "storefront:ratelimit:1.2.3.4")
// ARGV[1] = window length in milliseconds
//
// Returns {count, remaining_ms}. The first request in a window sets the
// expiry; later requests leave it untouched so the window never slides.
// A key that somehow lost its TTL is re-armed rather than left to live forever.
const luaIncrementWindow = `
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// Increment implements storage.CounterStore.
// The window boundary is the key's expiry on the Valkey server.
func (s *Store) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (storage.WindowCounter, error) {
	if window < time.Millisecond {
		return storage.WindowCounter{}, fmt.Errorf("%w: window must be at least 1ms", storage.ErrInvalidInput)
	}

	result, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaIncrementWindow).
			Numkeys(1).
			Key(s.counterKey(key)).
			Arg(strconv.FormatInt(window.Milliseconds(), 10)).
			Build(),
	).AsIntSlice()
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
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.counterKey(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}
