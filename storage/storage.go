package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Sentinel errors returned by storage implementations.
var (
	// ErrNotFound indicates that the requested product or order does not exist
	ErrNotFound = errors.New("not found")

	// ErrSessionNotFound indicates that a session token is unknown or has expired
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInput indicates a nil or incomplete record was passed to a store
	ErrInvalidInput = errors.New("invalid input")
)

// WindowCounter is one client's request activity inside a fixed window.
type WindowCounter struct {
	// Key identifies the client (usually its IP address)
	Key string

	// Count is the number of requests observed in the current window, including this one
	Count int64

	// ResetAt is when the current window ends
	ResetAt time.Time
}

// CounterStore holds fixed-window request counters keyed by client.
// Implementations must be safe for concurrent use.
// All methods accept context.Context for tracing and cancellation.
type CounterStore interface {
	// Increment records one request from key observed at now.
	//
	// A key seen for the first time, or whose window ended strictly before now,
	// starts a new window with Count 1 and ResetAt now+window. Otherwise Count
	// is incremented. The updated counter is returned.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (WindowCounter, error)

	// Reset forgets the counter for key. Resetting an unknown key is not an error.
	Reset(ctx context.Context, key string) error
}

// Session is a server-side record of an authenticated admin session.
type Session struct {
	// Token is the opaque value carried in the session cookie
	Token string

	// CreatedAt is when the session was minted
	CreatedAt time.Time

	// ExpiresAt is when the session stops being valid
	ExpiresAt time.Time
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore records admin sessions so that the session gate can reject
// tokens the server never issued or has since revoked.
// All methods accept context.Context for tracing and cancellation.
type SessionStore interface {
	// SaveSession stores a session until its ExpiresAt
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the session for token, or ErrSessionNotFound when
	// the token is unknown or expired
	GetSession(ctx context.Context, token string) (*Session, error)

	// DeleteSession removes the session. Deleting an unknown token is not an error.
	DeleteSession(ctx context.Context, token string) error
}

// SessionKey derives the lookup key under which a remote store keeps a
// session, so raw tokens never appear in key names.
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ProductStore manages the perfume collections.
// All methods accept context.Context for tracing and cancellation.
type ProductStore interface {
	// ListProducts returns the products of a collection, newest first
	ListProducts(ctx context.Context, collection Collection) ([]*Product, error)

	// GetProduct returns a single product or ErrNotFound
	GetProduct(ctx context.Context, collection Collection, id string) (*Product, error)

	// CreateProduct stores a new product. The caller assigns ID and timestamps.
	CreateProduct(ctx context.Context, product *Product) error

	// UpdateProduct replaces an existing product or returns ErrNotFound
	UpdateProduct(ctx context.Context, product *Product) error

	// DeleteProduct removes a product or returns ErrNotFound
	DeleteProduct(ctx context.Context, collection Collection, id string) error
}

// OrderStore manages checkout orders.
// All methods accept context.Context for tracing and cancellation.
type OrderStore interface {
	// CreateOrder stores a new order. The caller assigns ID and timestamps.
	CreateOrder(ctx context.Context, order *Order) error

	// ListOrders returns all orders, newest first
	ListOrders(ctx context.Context) ([]*Order, error)

	// UpdateOrderStatus changes the status of an order or returns ErrNotFound
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus, updatedAt time.Time) error
}
