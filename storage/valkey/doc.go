// Package valkey provides a Valkey storage backend for the storefront's
// rate-limit counters and admin sessions.
//
// Valkey is wire-compatible with Redis. Keeping counters here lets several
// storefront instances share one view of each client's window, and keeps
// sessions valid across restarts.
//
// # Implemented Interfaces
//
//   - [storage.CounterStore]: fixed-window counters
//   - [storage.SessionStore]: server-side admin sessions
//
// # Key Schema
//
// All keys use a configurable prefix (default "storefront:"):
//
//	{prefix}ratelimit:{clientKey}        -> counter (PEXPIRE = window)
//	{prefix}session:{sha256(token)}      -> JSON(session) (PX = remaining lifetime)
//
// # Atomic Operations
//
// Increment runs as a single Lua script (INCR, PEXPIRE on first hit, PTTL),
// so concurrent requests from the same client across instances are counted
// exactly once each. The window ends when the key expires.
//
// # Configuration
//
//	store, err := valkey.New(valkey.Config{
//	    Address:   "localhost:6379",
//	    KeyPrefix: "storefront:",
//	})
package valkey
