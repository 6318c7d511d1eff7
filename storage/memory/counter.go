package memory

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/storefront/storage"
)

const (
	// DefaultMaxCounterEntries is the maximum number of client keys tracked at once
	DefaultMaxCounterEntries = 10000

	// DefaultCounterSweepInterval is how often ended windows are swept
	DefaultCounterSweepInterval = 5 * time.Minute
)

// counterEntry is one client's fixed-window counter
type counterEntry struct {
	key     string
	count   int64
	resetAt time.Time
}

// CounterStoreConfig configures a CounterStore.
type CounterStoreConfig struct {
	// MaxEntries caps the number of tracked keys. When the cap is reached the
	// least recently used key is evicted and starts a fresh window if it returns.
	// Zero uses DefaultMaxCounterEntries.
	MaxEntries int

	// SweepInterval is how often entries with ended windows are removed.
	// Zero uses DefaultCounterSweepInterval.
	SweepInterval time.Duration

	// Now supplies the sweep's notion of time. Defaults to time.Now.
	Now func() time.Time

	// Logger is optional (default: slog.Default())
	Logger *slog.Logger
}

// CounterStore is an in-memory storage.CounterStore with bounded memory.
// Memory is bounded twice: a periodic sweep drops counters whose window has
// ended, and an LRU cap evicts the least recently seen client when full.
// Neither changes admission results for clients still inside their window,
// except that an evicted client gets a fresh window.
type CounterStore struct {
	entries       map[string]*list.Element // key -> list element
	lruList       *list.List               // LRU list of *counterEntry
	mu            sync.Mutex
	maxEntries    int
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	stopSweep     chan struct{}
	stopOnce      sync.Once

	// Statistics
	totalEvictions int64
	totalSweeps    int64
}

var _ storage.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates a counter store and starts its sweep goroutine.
// Call Stop to release it.
func NewCounterStore(cfg CounterStoreConfig) *CounterStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxCounterEntries
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultCounterSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &CounterStore{
		entries:       make(map[string]*list.Element),
		lruList:       list.New(),
		maxEntries:    cfg.MaxEntries,
		sweepInterval: cfg.SweepInterval,
		now:           cfg.Now,
		logger:        logger,
		stopSweep:     make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// Increment implements storage.CounterStore.
func (s *CounterStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (storage.WindowCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.entries[key]; exists {
		s.lruList.MoveToFront(elem)
		entry := elem.Value.(*counterEntry)

		if now.After(entry.resetAt) {
			entry.count = 1
			entry.resetAt = now.Add(window)
		} else {
			entry.count++
		}
		return storage.WindowCounter{Key: key, Count: entry.count, ResetAt: entry.resetAt}, nil
	}

	if len(s.entries) >= s.maxEntries {
		s.evictLRU()
	}

	entry := &counterEntry{
		key:     key,
		count:   1,
		resetAt: now.Add(window),
	}
	s.entries[key] = s.lruList.PushFront(entry)

	return storage.WindowCounter{Key: key, Count: entry.count, ResetAt: entry.resetAt}, nil
}

// Reset implements storage.CounterStore.
func (s *CounterStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.entries[key]; exists {
		s.lruList.Remove(elem)
		delete(s.entries, key)
	}
	return nil
}

// evictLRU removes the least recently used entry.
// Must be called with mutex locked.
func (s *CounterStore) evictLRU() {
	elem := s.lruList.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*counterEntry)
	delete(s.entries, entry.key)
	s.lruList.Remove(elem)
	s.totalEvictions++

	s.logger.Debug("Rate limit counter LRU eviction",
		"total_evictions", s.totalEvictions,
		"current_entries", len(s.entries))
}

func (s *CounterStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.now())
		case <-s.stopSweep:
			return
		}
	}
}

// Sweep removes every counter whose window ended before now and returns how
// many were removed. A swept client starts a new window on its next request,
// exactly as it would have if the entry were still present.
func (s *CounterStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	var next *list.Element
	for elem := s.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*counterEntry)

		if now.After(entry.resetAt) {
			delete(s.entries, entry.key)
			s.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		s.totalSweeps++
		s.logger.Debug("Rate limit counter sweep completed",
			"removed", removed,
			"remaining", len(s.entries),
			"total_sweeps", s.totalSweeps)
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *CounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop stops the sweep goroutine. It is safe to call more than once.
func (s *CounterStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
	})
}

// CounterStats holds counter store statistics for monitoring
type CounterStats struct {
	CurrentEntries int     // Current number of tracked keys
	MaxEntries     int     // Maximum allowed entries
	TotalEvictions int64   // Total number of LRU evictions
	TotalSweeps    int64   // Total number of sweeps that removed something
	MemoryPressure float64 // Percentage of max capacity used (0-100)
}

// GetStats returns current statistics.
func (s *CounterStore) GetStats() CounterStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return CounterStats{
		CurrentEntries: len(s.entries),
		MaxEntries:     s.maxEntries,
		TotalEvictions: s.totalEvictions,
		TotalSweeps:    s.totalSweeps,
		MemoryPressure: float64(len(s.entries)) / float64(s.maxEntries) * 100.0,
	}
}
