// Package zset implements sorted sets: a member->score map paired with a
// skip list ordered by (score, member).
//
// The skip list keeps its nodes in an arena slice and links them by index.
// Both structures of a set are mutated under the set's own lock, so a
// reader never sees a member in one index and not the other.
package zset
