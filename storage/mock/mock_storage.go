// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/storefront/storage"
)

// CounterStore is a mock storage.CounterStore. Set IncrementFunc or ResetFunc
// to inject results; CallCounts records how often each method ran.
type CounterStore struct {
	mu            sync.Mutex
	IncrementFunc func(key string, now time.Time, window time.Duration) (storage.WindowCounter, error)
	ResetFunc     func(key string) error
	CallCounts    map[string]int
}

var _ storage.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates a mock counter store whose Increment always reports a first request.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		IncrementFunc: func(key string, now time.Time, window time.Duration) (storage.WindowCounter, error) {
			return storage.WindowCounter{Key: key, Count: 1, ResetAt: now.Add(window)}, nil
		},
		ResetFunc:  func(string) error { return nil },
		CallCounts: make(map[string]int),
	}
}

// Increment implements storage.CounterStore
func (m *CounterStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (storage.WindowCounter, error) {
	m.record("Increment")
	return m.IncrementFunc(key, now, window)
}

// Reset implements storage.CounterStore
func (m *CounterStore) Reset(_ context.Context, key string) error {
	m.record("Reset")
	return m.ResetFunc(key)
}

func (m *CounterStore) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Calls returns how many times method was called.
func (m *CounterStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

// SessionStore is a mock storage.SessionStore backed by a map. Any Func
// field may be replaced to inject failures.
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*storage.Session
	SaveFunc   func(session *storage.Session) error
	GetFunc    func(token string) (*storage.Session, error)
	DeleteFunc func(token string) error
}

var _ storage.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a working in-map mock session store.
func NewSessionStore() *SessionStore {
	m := &SessionStore{sessions: make(map[string]*storage.Session)}

	m.SaveFunc = func(session *storage.Session) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		s := *session
		m.sessions[session.Token] = &s
		return nil
	}
	m.GetFunc = func(token string) (*storage.Session, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		s, ok := m.sessions[token]
		if !ok {
			return nil, storage.ErrSessionNotFound
		}
		out := *s
		return &out, nil
	}
	m.DeleteFunc = func(token string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, token)
		return nil
	}
	return m
}

// SaveSession implements storage.SessionStore
func (m *SessionStore) SaveSession(_ context.Context, session *storage.Session) error {
	return m.SaveFunc(session)
}

// GetSession implements storage.SessionStore
func (m *SessionStore) GetSession(_ context.Context, token string) (*storage.Session, error) {
	return m.GetFunc(token)
}

// DeleteSession implements storage.SessionStore
func (m *SessionStore) DeleteSession(_ context.Context, token string) error {
	return m.DeleteFunc(token)
}

// Len returns the number of sessions held by the default implementation.
func (m *SessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ProductStore is a mock storage.ProductStore whose methods all return Err
// when it is set. Used to exercise storage failure paths in handlers.
type ProductStore struct {
	Err      error
	Products []*storage.Product
}

var _ storage.ProductStore = (*ProductStore)(nil)

// ListProducts implements storage.ProductStore
func (m *ProductStore) ListProducts(context.Context, storage.Collection) ([]*storage.Product, error) {
	return m.Products, m.Err
}

// GetProduct implements storage.ProductStore
func (m *ProductStore) GetProduct(_ context.Context, _ storage.Collection, id string) (*storage.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

// CreateProduct implements storage.ProductStore
func (m *ProductStore) CreateProduct(context.Context, *storage.Product) error { return m.Err }

// UpdateProduct implements storage.ProductStore
func (m *ProductStore) UpdateProduct(context.Context, *storage.Product) error { return m.Err }

// DeleteProduct implements storage.ProductStore
func (m *ProductStore) DeleteProduct(context.Context, storage.Collection, string) error { return m.Err }

// OrderStore is a mock storage.OrderStore whose methods all return Err when it is set.
type OrderStore struct {
	Err    error
	Orders []*storage.Order
}

var _ storage.OrderStore = (*OrderStore)(nil)

// CreateOrder implements storage.OrderStore
func (m *OrderStore) CreateOrder(context.Context, *storage.Order) error { return m.Err }

// ListOrders implements storage.OrderStore
func (m *OrderStore) ListOrders(context.Context) ([]*storage.Order, error) { return m.Orders, m.Err }

// UpdateOrderStatus implements storage.OrderStore
func (m *OrderStore) UpdateOrderStatus(context.Context, string, storage.OrderStatus, time.Time) error {
	return m.Err
}
