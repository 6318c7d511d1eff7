// Package storage defines the persistence interfaces used by the storefront.
//
// The core interfaces are:
//   - CounterStore: fixed-window request counters backing the rate limiter
//   - SessionStore: optional server-side record of admin sessions
//   - ProductStore: perfume collections (women, men, gift sets)
//   - OrderStore: checkout orders
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory counters, sessions and catalog for development and testing
//   - storage/valkey: Valkey-backed counters and sessions for multi-instance deployments
//   - storage/redis: Redis-backed counters and sessions (go-redis)
//   - storage/sqlstore: relational catalog and orders (PostgreSQL or SQLite)
//   - storage/mock: function-field mocks for failure injection in tests
package storage
