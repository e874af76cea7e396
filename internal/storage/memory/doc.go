// Package memory provides the string and list stores.
//
// Both stores sit on sharded concurrent maps. String entries are immutable
// once published, so reads take only the shard read lock; every update
// swaps in a new entry. Lists are guarded by a per-key mutex and unlinked
// from the store as soon as they become empty.
//
// Expiry is lazy: a read past the deadline deletes the entry and reports
// it missing. SweepExpired removes everything else that has lapsed and is
// meant to be driven by a periodic caller.
package memory
