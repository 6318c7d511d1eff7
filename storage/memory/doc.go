// Package memory provides in-memory implementations of the storage interfaces.
//
// CounterStore backs the rate limiter with bounded memory (LRU cap plus a
// periodic sweep of ended windows). Store holds sessions, products and orders
// and is suitable for development, tests and single-instance deployments.
// Neither survives a restart.
package memory
