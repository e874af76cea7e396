// Package cmap provides a sharded concurrent map keyed by string.
//
// Keys are distributed over a power-of-two number of shards using murmur3,
// each shard guarded by its own RWMutex. Every value store in the server
// (strings, lists, sorted sets, streams) keeps its keyspace in a Map.
//
// Usage:
//
//	m := cmap.New[*entry]()
//	m.Set("key", e)
//	val, ok := m.Get("key")
//
// Iteration (Range, Keys) locks one shard at a time, so a concurrent writer
// may or may not be observed by an in-progress iteration.
package cmap
