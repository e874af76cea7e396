package zset

import (
	"math"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/pkg/cmap"
)

// Store holds every sorted set of the keyspace.
type Store struct {
	sets *cmap.Map[*ZSet]
}

// NewStore creates an empty sorted-set store.
func NewStore() *Store {
	return &Store{sets: cmap.New[*ZSet]()}
}

// mutate runs fn under the write lock of the set stored at key, creating it
// when create is set. A set left empty is unlinked from the store.
func (s *Store) mutate(key string, create bool, fn func(z *ZSet)) {
	for {
		var z *ZSet
		if create {
			z, _ = s.sets.GetOrCreate(key, New)
		} else {
			var ok bool
			if z, ok = s.sets.Get(key); !ok {
				return
			}
		}

		z.mu.Lock()
		if z.dead {
			// Lost a race with the removal of an emptied set; retry on the fresh one.
			z.mu.Unlock()
			continue
		}
		fn(z)
		if len(z.scores) == 0 {
			z.dead = true
			s.sets.DeleteIf(key, func(v *ZSet) bool { return v == z })
		}
		z.mu.Unlock()
		return
	}
}

func (s *Store) get(key string) (*ZSet, bool) {
	return s.sets.Get(key)
}

// Add inserts or repositions member and reports whether it is new.
func (s *Store) Add(key, member string, score float64) bool {
	var added bool
	s.mutate(key, true, func(z *ZSet) {
		added = z.add(member, score)
	})
	return added
}

// IncrBy adds delta to member's score (0 when absent) and returns the result.
// A sum that is NaN leaves the set unchanged and returns domain.ErrScoreNaN.
func (s *Store) IncrBy(key, member string, delta float64) (float64, error) {
	var (
		score float64
		err   error
	)
	s.mutate(key, true, func(z *ZSet) {
		score = z.scores[member] + delta
		if math.IsNaN(score) {
			err = domain.ErrScoreNaN
			return
		}
		z.add(member, score)
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// Remove deletes member and reports whether it was present.
func (s *Store) Remove(key, member string) bool {
	var removed bool
	s.mutate(key, false, func(z *ZSet) {
		removed = z.remove(member)
	})
	return removed
}

// RemoveRangeByScore deletes members with min <= score <= max.
func (s *Store) RemoveRangeByScore(key string, min, max float64) int {
	var n int
	s.mutate(key, false, func(z *ZSet) {
		if min > max {
			return
		}
		for _, m := range z.index.DeleteRangeByScore(min, max) {
			delete(z.scores, m.Name)
			n++
		}
	})
	return n
}

// RemoveRangeByRank deletes the members between start and stop inclusive.
func (s *Store) RemoveRangeByRank(key string, start, stop int) int {
	var n int
	s.mutate(key, false, func(z *ZSet) {
		lo, hi, ok := normalizeRank(start, stop, z.index.Len())
		if !ok {
			return
		}
		for _, m := range z.index.DeleteRangeByRank(lo, hi) {
			delete(z.scores, m.Name)
			n++
		}
	})
	return n
}

// Score returns member's score.
func (s *Store) Score(key, member string) (float64, bool) {
	z, ok := s.get(key)
	if !ok {
		return 0, false
	}
	return z.Score(member)
}

// Rank returns member's ascending rank.
func (s *Store) Rank(key, member string) (int, bool) {
	z, ok := s.get(key)
	if !ok {
		return 0, false
	}
	return z.Rank(member)
}

// RevRank returns member's descending rank.
func (s *Store) RevRank(key, member string) (int, bool) {
	z, ok := s.get(key)
	if !ok {
		return 0, false
	}
	return z.RevRank(member)
}

// RangeByScore returns members with min <= score <= max, ascending.
func (s *Store) RangeByScore(key string, min, max float64) []Member {
	z, ok := s.get(key)
	if !ok {
		return nil
	}
	return z.RangeByScore(min, max)
}

// RangeByRank returns members between start and stop, ascending.
func (s *Store) RangeByRank(key string, start, stop int) []Member {
	z, ok := s.get(key)
	if !ok {
		return nil
	}
	return z.RangeByRank(start, stop)
}

// RevRangeByRank returns members between start and stop counted from the
// highest score, descending.
func (s *Store) RevRangeByRank(key string, start, stop int) []Member {
	z, ok := s.get(key)
	if !ok {
		return nil
	}
	return z.RevRangeByRank(start, stop)
}

// Card returns the number of members of the set at key.
func (s *Store) Card(key string) int {
	z, ok := s.get(key)
	if !ok {
		return 0
	}
	return z.Len()
}

// Count returns the number of members with min <= score <= max.
func (s *Store) Count(key string, min, max float64) int {
	z, ok := s.get(key)
	if !ok {
		return 0
	}
	return z.CountByScore(min, max)
}

// Members returns every member of the set at key in ascending order.
func (s *Store) Members(key string) []Member {
	z, ok := s.get(key)
	if !ok {
		return nil
	}
	return z.Members()
}

// Contains reports whether key holds a sorted set.
func (s *Store) Contains(key string) bool {
	return s.sets.Has(key)
}

// Delete removes the whole set at key.
func (s *Store) Delete(key string) bool {
	var existed bool
	s.mutate(key, false, func(z *ZSet) {
		existed = true
		z.scores = map[string]float64{}
		z.index = NewSkipList()
	})
	return existed
}

// Keys returns the keys of all sorted sets.
func (s *Store) Keys() []string {
	return s.sets.Keys()
}

// Len returns the number of sorted-set keys.
func (s *Store) Len() int {
	return s.sets.Count()
}

// Clear drops every sorted set.
func (s *Store) Clear() {
	s.sets.Clear()
}
