// Package cache provides an in-memory TTL cache with an injectable clock.
//
// Every consumer owns its own Cache instance and picks its own TTL; there is
// no package-level cache. An entry is served only while now - insertedAt is
// below the TTL. Writers that mutate the backing data call Invalidate (or
// Clear) right after a successful write, so staleness is bounded by the TTL
// only for changes the owner did not make itself.
package cache
