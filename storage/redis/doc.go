// Package redis provides a Redis storage backend (go-redis) for the
// storefront's rate-limit counters and admin sessions.
//
// It uses the same key schema and Lua counter script as storage/valkey, so
// either backend can be pointed at the same server. Pick this one when the
// deployment already standardizes on go-redis (Sentinel, Cluster options).
package redis
