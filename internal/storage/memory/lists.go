package memory

import (
	"container/list"
	"sync"

	"github.com/yndnr/memkv-go/pkg/cmap"
)

type listValue struct {
	mu    sync.Mutex
	items *list.List
	dead  bool
}

func newListValue() *listValue {
	return &listValue{items: list.New()}
}

// ListStore holds list keys.
type ListStore struct {
	lists *cmap.Map[*listValue]
}

// NewListStore creates an empty list store.
func NewListStore() *ListStore {
	return &ListStore{lists: cmap.New[*listValue]()}
}

// mutate runs fn under the lock of the list at key. An emptied list is
// unlinked before the lock is released.
func (s *ListStore) mutate(key string, create bool, fn func(l *list.List)) {
	for {
		var lv *listValue
		if create {
			lv, _ = s.lists.GetOrCreate(key, newListValue)
		} else {
			var ok bool
			if lv, ok = s.lists.Get(key); !ok {
				return
			}
		}

		lv.mu.Lock()
		if lv.dead {
			lv.mu.Unlock()
			continue
		}
		fn(lv.items)
		if lv.items.Len() == 0 {
			lv.dead = true
			s.lists.DeleteIf(key, func(v *listValue) bool { return v == lv })
		}
		lv.mu.Unlock()
		return
	}
}

func (s *ListStore) view(key string, fn func(l *list.List)) {
	lv, ok := s.lists.Get(key)
	if !ok {
		return
	}
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if !lv.dead {
		fn(lv.items)
	}
}

// PushLeft prepends values one at a time, so the last value ends up at the
// head. It returns the new length.
func (s *ListStore) PushLeft(key string, values ...string) int {
	var n int
	s.mutate(key, true, func(l *list.List) {
		for _, v := range values {
			l.PushFront(v)
		}
		n = l.Len()
	})
	return n
}

// PushRight appends values and returns the new length.
func (s *ListStore) PushRight(key string, values ...string) int {
	var n int
	s.mutate(key, true, func(l *list.List) {
		for _, v := range values {
			l.PushBack(v)
		}
		n = l.Len()
	})
	return n
}

// PopLeft removes and returns the head.
func (s *ListStore) PopLeft(key string) (string, bool) {
	return s.pop(key, (*list.List).Front)
}

// PopRight removes and returns the tail.
func (s *ListStore) PopRight(key string) (string, bool) {
	return s.pop(key, (*list.List).Back)
}

func (s *ListStore) pop(key string, end func(*list.List) *list.Element) (string, bool) {
	var (
		v  string
		ok bool
	)
	s.mutate(key, false, func(l *list.List) {
		if e := end(l); e != nil {
			v, ok = l.Remove(e).(string), true
		}
	})
	return v, ok
}

// PopLeftN removes up to n elements from the head in one step. ok is false
// when the key does not exist.
func (s *ListStore) PopLeftN(key string, n int) ([]string, bool) {
	return s.popN(key, n, (*list.List).Front)
}

// PopRightN removes up to n elements from the tail in one step.
func (s *ListStore) PopRightN(key string, n int) ([]string, bool) {
	return s.popN(key, n, (*list.List).Back)
}

func (s *ListStore) popN(key string, n int, end func(*list.List) *list.Element) ([]string, bool) {
	var (
		out []string
		ok  bool
	)
	s.mutate(key, false, func(l *list.List) {
		ok = true
		out = make([]string, 0, min(n, l.Len()))
		for len(out) < n {
			e := end(l)
			if e == nil {
				break
			}
			out = append(out, l.Remove(e).(string))
		}
	})
	return out, ok
}

// Range returns elements start..stop inclusive. Negative indexes count
// from the tail; out-of-range bounds are clamped.
func (s *ListStore) Range(key string, start, stop int) []string {
	out := []string{}
	s.view(key, func(l *list.List) {
		n := l.Len()
		if start < 0 {
			start += n
		}
		if stop < 0 {
			stop += n
		}
		start = max(start, 0)
		stop = min(stop, n-1)
		if start > stop {
			return
		}
		i := 0
		for e := l.Front(); e != nil && i <= stop; e = e.Next() {
			if i >= start {
				out = append(out, e.Value.(string))
			}
			i++
		}
	})
	return out
}

// Remove deletes occurrences of value: the first count from the head when
// count > 0, the last -count from the tail when count < 0, all when 0.
func (s *ListStore) Remove(key string, count int, value string) int {
	removed := 0
	s.mutate(key, false, func(l *list.List) {
		if count < 0 {
			for e := l.Back(); e != nil && removed < -count; {
				prev := e.Prev()
				if e.Value.(string) == value {
					l.Remove(e)
					removed++
				}
				e = prev
			}
			return
		}
		for e := l.Front(); e != nil && (count == 0 || removed < count); {
			next := e.Next()
			if e.Value.(string) == value {
				l.Remove(e)
				removed++
			}
			e = next
		}
	})
	return removed
}

// Len returns the length of the list at key.
func (s *ListStore) Len(key string) int {
	n := 0
	s.view(key, func(l *list.List) {
		n = l.Len()
	})
	return n
}

// Items copies the whole list at key.
func (s *ListStore) Items(key string) []string {
	return s.Range(key, 0, -1)
}

// Contains reports whether key holds a list.
func (s *ListStore) Contains(key string) bool {
	return s.lists.Has(key)
}

// Delete removes the list at key.
func (s *ListStore) Delete(key string) bool {
	lv, ok := s.lists.Pop(key)
	if !ok {
		return false
	}
	lv.mu.Lock()
	lv.dead = true
	lv.mu.Unlock()
	return true
}

// Keys returns the keys of all lists.
func (s *ListStore) Keys() []string {
	return s.lists.Keys()
}

// Count returns the number of list keys.
func (s *ListStore) Count() int {
	return s.lists.Count()
}

// Clear drops every list.
func (s *ListStore) Clear() {
	s.lists.Clear()
}
