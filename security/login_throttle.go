package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultLoginAttemptsPerMinute is the sustained login attempt rate per client
	DefaultLoginAttemptsPerMinute = 5

	// DefaultLoginBurst is how many attempts a client may make back to back
	DefaultLoginBurst = 5

	// DefaultLoginThrottleMaxEntries is the maximum number of clients tracked
	DefaultLoginThrottleMaxEntries = 10000
)

// throttleEntry tracks a limiter and its last access time
type throttleEntry struct {
	key        string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginThrottleConfig configures a LoginThrottle.
type LoginThrottleConfig struct {
	// AttemptsPerMinute is the token refill rate. Zero uses the default.
	AttemptsPerMinute int

	// Burst is the bucket size. Zero uses the default.
	Burst int

	// MaxEntries caps tracked clients (LRU eviction). Zero uses the default.
	MaxEntries int

	// Clock supplies the current time (default: SystemClock)
	Clock Clock

	// Logger is optional (default: slog.Default())
	Logger *slog.Logger
}

// LoginThrottle limits admin login attempts per client with a token bucket,
// on top of the general request rate limit. Memory is bounded by LRU
// eviction and an idle cleanup loop.
type LoginThrottle struct {
	limiters        map[string]*list.Element // key -> list element
	lruList         *list.List               // LRU list of *throttleEntry
	mu              sync.Mutex
	rate            rate.Limit
	burst           int
	maxEntries      int
	clock           Clock
	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	// Statistics
	totalEvictions int64
	totalBlocked   int64
}

// NewLoginThrottle creates a login throttle and starts its cleanup goroutine.
func NewLoginThrottle(cfg LoginThrottleConfig) *LoginThrottle {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AttemptsPerMinute <= 0 {
		cfg.AttemptsPerMinute = DefaultLoginAttemptsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultLoginBurst
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultLoginThrottleMaxEntries
	}

	lt := &LoginThrottle{
		limiters:        make(map[string]*list.Element),
		lruList:         list.New(),
		rate:            rate.Every(time.Minute / time.Duration(cfg.AttemptsPerMinute)),
		burst:           cfg.Burst,
		maxEntries:      cfg.MaxEntries,
		clock:           clockOrDefault(cfg.Clock),
		logger:          logger,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go lt.cleanupLoop()

	return lt
}

// Allow reports whether a login attempt from key may proceed.
func (lt *LoginThrottle) Allow(key string) bool {
	now := lt.clock.Now()

	lt.mu.Lock()
	defer lt.mu.Unlock()

	var entry *throttleEntry
	if elem, exists := lt.limiters[key]; exists {
		lt.lruList.MoveToFront(elem)
		entry = elem.Value.(*throttleEntry)
	} else {
		if len(lt.limiters) >= lt.maxEntries {
			lt.evictLRU()
		}
		entry = &throttleEntry{
			key:     key,
			limiter: rate.NewLimiter(lt.rate, lt.burst),
		}
		lt.limiters[key] = lt.lruList.PushFront(entry)
	}
	entry.lastAccess = now

	if entry.limiter.AllowN(now, 1) {
		return true
	}

	lt.totalBlocked++
	return false
}

// evictLRU removes the least recently used entry.
// Must be called with mutex locked.
func (lt *LoginThrottle) evictLRU() {
	elem := lt.lruList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*throttleEntry)
	delete(lt.limiters, entry.key)
	lt.lruList.Remove(elem)
	lt.totalEvictions++
}

func (lt *LoginThrottle) cleanupLoop() {
	ticker := time.NewTicker(lt.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lt.Cleanup(30 * time.Minute)
		case <-lt.stopCleanup:
			return
		}
	}
}

// Cleanup removes limiters idle for longer than maxIdleTime.
func (lt *LoginThrottle) Cleanup(maxIdleTime time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	now := lt.clock.Now()
	removed := 0

	var next *list.Element
	for elem := lt.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*throttleEntry)

		if now.Sub(entry.lastAccess) > maxIdleTime {
			delete(lt.limiters, entry.key)
			lt.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		lt.logger.Debug("Login throttle cleanup completed",
			"removed", removed,
			"remaining", len(lt.limiters))
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (lt *LoginThrottle) Stop() {
	lt.stopOnce.Do(func() {
		close(lt.stopCleanup)
	})
}

// ThrottleStats holds login throttle statistics for monitoring
type ThrottleStats struct {
	CurrentEntries int   // Current number of tracked clients
	MaxEntries     int   // Maximum allowed entries
	TotalEvictions int64 // Total number of LRU evictions
	TotalBlocked   int64 // Total number of rejected attempts
}

// GetStats returns current statistics.
func (lt *LoginThrottle) GetStats() ThrottleStats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	return ThrottleStats{
		CurrentEntries: len(lt.limiters),
		MaxEntries:     lt.maxEntries,
		TotalEvictions: lt.totalEvictions,
		TotalBlocked:   lt.totalBlocked,
	}
}
