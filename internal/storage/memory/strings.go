package memory

import (
	"strconv"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/pkg/cmap"
)

type stringEntry struct {
	value    string
	expireAt int64 // unix ms, 0 when the key never expires
}

func (e *stringEntry) expired(nowMs int64) bool {
	return e.expireAt != 0 && e.expireAt <= nowMs
}

// StringEntry is an exported copy of a live string key.
type StringEntry struct {
	Key   string
	Value string
	// ExpireAt is the absolute deadline; zero when the key never expires.
	ExpireAt time.Time
}

// StringStore holds string keys with optional expiry.
type StringStore struct {
	entries *cmap.Map[*stringEntry]
	now     func() time.Time
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewStringStore creates an empty string store.
func NewStringStore(opts ...Option) *StringStore {
	o := buildOptions(opts)
	return &StringStore{
		entries: cmap.New[*stringEntry](),
		now:     o.now,
	}
}

func (s *StringStore) nowMs() int64 {
	return s.now().UnixMilli()
}

// Set stores value under key. A positive ttl makes the key expire; zero
// clears any previous expiry.
func (s *StringStore) Set(key, value string, ttl time.Duration) {
	e := &stringEntry{value: value}
	if ttl > 0 {
		e.expireAt = s.nowMs() + ttl.Milliseconds()
	}
	s.entries.Set(key, e)
}

// SetWithDeadline stores value with an absolute expiry. A zero deadline
// means no expiry.
func (s *StringStore) SetWithDeadline(key, value string, expireAt time.Time) {
	e := &stringEntry{value: value}
	if !expireAt.IsZero() {
		e.expireAt = expireAt.UnixMilli()
	}
	s.entries.Set(key, e)
}

// live returns the entry under key, evicting it if it has expired.
func (s *StringStore) live(key string) (*stringEntry, bool) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(s.nowMs()) {
		s.entries.DeleteIf(key, func(v *stringEntry) bool { return v == e })
		return nil, false
	}
	return e, true
}

// Get returns the value of key.
func (s *StringStore) Get(key string) (string, bool) {
	e, ok := s.live(key)
	if !ok {
		return "", false
	}
	return e.value, true
}

// Contains reports whether key holds a live string.
func (s *StringStore) Contains(key string) bool {
	_, ok := s.live(key)
	return ok
}

// Incr adds one to the integer stored at key. An absent key starts at 1.
// The expiry of an existing key is kept.
func (s *StringStore) Incr(key string) (int64, error) {
	var (
		result int64
		err    error
	)
	now := s.nowMs()
	s.entries.Compute(key, func(cur *stringEntry, exists bool) (*stringEntry, bool) {
		if !exists || cur.expired(now) {
			result = 1
			return &stringEntry{value: "1"}, true
		}
		n, perr := strconv.ParseInt(cur.value, 10, 64)
		if perr != nil || n == maxInt64 {
			err = domain.ErrNotInteger
			return cur, true
		}
		result = n + 1
		return &stringEntry{value: strconv.FormatInt(result, 10), expireAt: cur.expireAt}, true
	})
	return result, err
}

const maxInt64 = int64(^uint64(0) >> 1)

// IncrBy multiplies the integer stored at key by factor. An absent key
// yields 0 and is not created.
func (s *StringStore) IncrBy(key string, factor int64) (int64, error) {
	var (
		result int64
		err    error
	)
	now := s.nowMs()
	s.entries.Compute(key, func(cur *stringEntry, exists bool) (*stringEntry, bool) {
		if !exists || cur.expired(now) {
			return nil, false
		}
		n, perr := strconv.ParseInt(cur.value, 10, 64)
		if perr != nil {
			err = domain.ErrNotInteger
			return cur, true
		}
		product := n * factor
		if n != 0 && (product/n != factor || (n == -1 && factor == -maxInt64-1)) {
			err = domain.ErrNotInteger
			return cur, true
		}
		result = product
		return &stringEntry{value: strconv.FormatInt(result, 10), expireAt: cur.expireAt}, true
	})
	return result, err
}

// Delete removes key and reports whether a live value was removed.
func (s *StringStore) Delete(key string) bool {
	e, ok := s.entries.Pop(key)
	return ok && !e.expired(s.nowMs())
}

// SweepExpired removes every entry whose deadline is at or before now.
func (s *StringStore) SweepExpired(now time.Time) int {
	nowMs := now.UnixMilli()
	return s.entries.Sweep(func(_ string, e *stringEntry) bool {
		return e.expired(nowMs)
	})
}

// Keys returns every live key.
func (s *StringStore) Keys() []string {
	now := s.nowMs()
	var keys []string
	s.entries.Range(func(k string, e *stringEntry) bool {
		if !e.expired(now) {
			keys = append(keys, k)
		}
		return true
	})
	return keys
}

// Entries copies every live entry. Concurrent writes may or may not be
// reflected.
func (s *StringStore) Entries() []StringEntry {
	now := s.nowMs()
	var out []StringEntry
	s.entries.Range(func(k string, e *stringEntry) bool {
		if e.expired(now) {
			return true
		}
		se := StringEntry{Key: k, Value: e.value}
		if e.expireAt != 0 {
			se.ExpireAt = time.UnixMilli(e.expireAt)
		}
		out = append(out, se)
		return true
	})
	return out
}

// Count returns the number of stored keys, including expired ones not yet
// swept.
func (s *StringStore) Count() int {
	return s.entries.Count()
}

// Clear drops every key.
func (s *StringStore) Clear() {
	s.entries.Clear()
}
