// Package store provides a SQLite-backed trace log of engine events.
//
// Each run of the engine records into its own session (a UUIDv7). Events are
// appended with a per-session sequence number and read back in that order.
// Only events are stored; cached values never leave memory.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must belong to a session
package store
