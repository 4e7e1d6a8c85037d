// Package memkv provides a thread-safe sharded in-memory key-value store.
//
// Main properties:
//   - sharded map guarded by per-shard RW mutexes (16 shards by default)
//   - values copied on Set and Get so callers never alias stored bytes
//   - optional hard limit on the total size of stored values (Options.MaxBytes)
//   - Apply commits a batch of writes atomically across shards
//   - lock-free counters exposed through Metrics
//
// It backs the in-memory flash backend (pkg/flash/memfs) and the roster
// access view (pkg/peers).
package memkv
