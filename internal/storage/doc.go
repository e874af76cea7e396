// Package storage provides the keyspace engine for memkv.
//
// The engine owns one store per value type and presents them as a single
// keyspace: type lookup, cross-type delete, pattern listing, expiry
// sweeping, and conversion to and from snapshot images.
//
// A key lives in at most one store. Type checks and the mutation that
// follows them are separate steps, so two clients racing to create the
// same key as different types may both succeed; keys are never locked
// across stores.
package storage
