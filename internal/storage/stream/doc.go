// Package stream implements append-only streams.
//
// Entries are indexed by a radix tree keyed on the textual id "<ms>-<seq>".
// Range walks compare ids as strings, so the ordering is lexical: when the
// millisecond parts of two ids have different digit counts ("9-0" and
// "10-0") range results follow string order, not numeric order. Ids produced
// by "*" are all 13-digit wall-clock milliseconds, which keeps the two orders
// in agreement for generated ids. Append validation itself is numeric.
//
// Blocking reads park on a WaitManager that wakes every reader of a key
// when an entry is appended to it.
package stream
