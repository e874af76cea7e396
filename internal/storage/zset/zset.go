package zset

import (
	"slices"
	"sync"
)

// ZSet is a single sorted set. All methods are safe for concurrent use.
type ZSet struct {
	mu     sync.RWMutex
	scores map[string]float64
	index  *SkipList

	// dead is set once the set became empty and was unlinked from its Store.
	dead bool
}

// New returns an empty sorted set.
func New() *ZSet {
	return &ZSet{
		scores: make(map[string]float64),
		index:  NewSkipList(),
	}
}

// add inserts or repositions member. Callers hold z.mu.
func (z *ZSet) add(member string, score float64) bool {
	old, exists := z.scores[member]
	if exists {
		if old == score {
			return false
		}
		z.index.Delete(member, old)
	}
	z.scores[member] = score
	z.index.Insert(member, score)
	return !exists
}

func (z *ZSet) remove(member string) bool {
	score, ok := z.scores[member]
	if !ok {
		return false
	}
	delete(z.scores, member)
	z.index.Delete(member, score)
	return true
}

// Len returns the number of members.
func (z *ZSet) Len() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return len(z.scores)
}

// Score returns the score of member.
func (z *ZSet) Score(member string) (float64, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	s, ok := z.scores[member]
	return s, ok
}

// Rank returns the ascending position of member.
func (z *ZSet) Rank(member string) (int, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	score, ok := z.scores[member]
	if !ok {
		return 0, false
	}
	return z.index.Rank(member, score)
}

// RevRank returns the descending position of member.
func (z *ZSet) RevRank(member string) (int, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	score, ok := z.scores[member]
	if !ok {
		return 0, false
	}
	r, ok := z.index.Rank(member, score)
	if !ok {
		return 0, false
	}
	return z.index.Len() - 1 - r, true
}

// RangeByScore returns members with min <= score <= max, ascending.
func (z *ZSet) RangeByScore(min, max float64) []Member {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if min > max {
		return nil
	}
	return z.index.RangeByScore(min, max)
}

// CountByScore counts members with min <= score <= max.
func (z *ZSet) CountByScore(min, max float64) int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if min > max {
		return 0
	}
	return z.index.CountByScore(min, max)
}

// RangeByRank returns the members between start and stop inclusive.
// Negative positions count from the end (-1 is the last member).
func (z *ZSet) RangeByRank(start, stop int) []Member {
	z.mu.RLock()
	defer z.mu.RUnlock()
	lo, hi, ok := normalizeRank(start, stop, z.index.Len())
	if !ok {
		return nil
	}
	return z.index.RangeByRank(lo, hi)
}

// RevRangeByRank is RangeByRank with positions counted from the highest
// score; members come back in descending order.
func (z *ZSet) RevRangeByRank(start, stop int) []Member {
	z.mu.RLock()
	defer z.mu.RUnlock()
	n := z.index.Len()
	lo, hi, ok := normalizeRank(start, stop, n)
	if !ok {
		return nil
	}
	out := z.index.RangeByRank(n-1-hi, n-1-lo)
	slices.Reverse(out)
	return out
}

// Members returns every member in ascending order.
func (z *ZSet) Members() []Member {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.index.All()
}

// normalizeRank converts possibly negative rank bounds into a clamped
// closed interval. ok is false when the interval is empty.
func normalizeRank(start, stop, n int) (int, int, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
