package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/storefront/storage"
)

// Store is an in-memory implementation of SessionStore, ProductStore and OrderStore.
type Store struct {
	mu sync.RWMutex

	sessions map[string]*storage.Session
	products map[storage.Collection]map[string]*storage.Product
	orders   map[string]*storage.Order

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.SessionStore = (*Store)(nil)
	_ storage.ProductStore = (*Store)(nil)
	_ storage.OrderStore   = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom session cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		sessions:        make(map[string]*storage.Session),
		products:        make(map[storage.Collection]map[string]*storage.Product),
		orders:          make(map[string]*storage.Order),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}
	for _, c := range storage.Collections {
		s.products[c] = make(map[string]*storage.Product)
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpiredSessions(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

// CleanupExpiredSessions removes sessions that expired at or before now.
func (s *Store) CleanupExpiredSessions(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Expired sessions removed", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

// ============================================================
// SessionStore Implementation
// ============================================================

// SaveSession implements storage.SessionStore.
func (s *Store) SaveSession(_ context.Context, session *storage.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("%w: session token is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	s.sessions[session.Token] = &stored
	return nil
}

// GetSession implements storage.SessionStore.
func (s *Store) GetSession(_ context.Context, token string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok || session.IsExpired(time.Now()) {
		return nil, storage.ErrSessionNotFound
	}
	out := *session
	return &out, nil
}

// DeleteSession implements storage.SessionStore.
func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// ============================================================
// ProductStore Implementation
// ============================================================

// ListProducts implements storage.ProductStore.
func (s *Store) ListProducts(_ context.Context, collection storage.Collection) ([]*storage.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID, ok := s.products[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", storage.ErrInvalidInput, collection)
	}

	out := make([]*storage.Product, 0, len(byID))
	for _, p := range byID {
		out = append(out, copyProduct(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetProduct implements storage.ProductStore.
func (s *Store) GetProduct(_ context.Context, collection storage.Collection, id string) (*storage.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[collection][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyProduct(p), nil
}

// CreateProduct implements storage.ProductStore.
func (s *Store) CreateProduct(_ context.Context, product *storage.Product) error {
	if product == nil || product.ID == "" {
		return fmt.Errorf("%w: product id is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.products[product.Collection]
	if !ok {
		return fmt.Errorf("%w: unknown collection %q", storage.ErrInvalidInput, product.Collection)
	}
	if _, exists := byID[product.ID]; exists {
		return fmt.Errorf("%w: product %s already exists", storage.ErrInvalidInput, product.ID)
	}
	byID[product.ID] = copyProduct(product)
	return nil
}

// UpdateProduct implements storage.ProductStore.
func (s *Store) UpdateProduct(_ context.Context, product *storage.Product) error {
	if product == nil || product.ID == "" {
		return fmt.Errorf("%w: product id is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.Collection][product.ID]
	if !ok {
		return storage.ErrNotFound
	}
	updated := copyProduct(product)
	updated.CreatedAt = existing.CreatedAt
	s.products[product.Collection][product.ID] = updated
	return nil
}

// DeleteProduct implements storage.ProductStore.
func (s *Store) DeleteProduct(_ context.Context, collection storage.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[collection][id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.products[collection], id)
	return nil
}

// ============================================================
// OrderStore Implementation
// ============================================================

// CreateOrder implements storage.OrderStore.
func (s *Store) CreateOrder(_ context.Context, order *storage.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("%w: order id is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s already exists", storage.ErrInvalidInput, order.ID)
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

// ListOrders implements storage.OrderStore.
func (s *Store) ListOrders(_ context.Context) ([]*storage.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, copyOrder(o))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateOrderStatus implements storage.OrderStore.
func (s *Store) UpdateOrderStatus(_ context.Context, id string, status storage.OrderStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return storage.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	return nil
}

func copyProduct(p *storage.Product) *storage.Product {
	out := *p
	out.ImageURLs = append([]string(nil), p.ImageURLs...)
	out.TopNotes = append([]string(nil), p.TopNotes...)
	out.HeartNotes = append([]string(nil), p.HeartNotes...)
	out.BaseNotes = append([]string(nil), p.BaseNotes...)
	out.Variants = append([]storage.Variant(nil), p.Variants...)
	if p.Rating != nil {
		r := *p.Rating
		out.Rating = &r
	}
	return &out
}

func copyOrder(o *storage.Order) *storage.Order {
	out := *o
	out.Items = append([]storage.OrderItem(nil), o.Items...)
	return &out
}
