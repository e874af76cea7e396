// Package rdb encodes and decodes keyspace snapshots in a subset of the
// Redis RDB format (version 9).
//
// A file is the "REDIS0009" header, a sequence of opcode-tagged records
// and an EOF marker followed by an 8-byte checksum that is written as
// zeros and ignored on read. Supported value records are strings, lists,
// sorted sets and streams; database selectors, resize hints and auxiliary
// fields are skipped on read.
package rdb
