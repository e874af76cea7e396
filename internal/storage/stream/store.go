package stream

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/memkv-go/pkg/cmap"
)

// Stream is a single stream value.
type Stream struct {
	mu   sync.RWMutex
	tree Tree
	last ID
	dead bool
}

// Len returns the number of entries.
func (st *Stream) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.tree.Len()
}

func (st *Stream) walk(b Bounds) []Entry {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var out []Entry
	st.tree.Walk(b, func(e *Entry) bool {
		out = append(out, *e)
		return true
	})
	return out
}

// Store holds every stream of the keyspace.
type Store struct {
	streams *cmap.Map[*Stream]
	waits   *WaitManager
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for "*" ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty stream store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		streams: cmap.New[*Stream](),
		waits:   NewWaitManager(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newStream() *Stream {
	return &Stream{}
}

// Append adds an entry to the stream at key, creating it if needed, and
// wakes blocked readers. idSpec is "*", "<ms>-*" or an explicit id.
func (s *Store) Append(key, idSpec string, fields []Field) (ID, error) {
	for {
		st, _ := s.streams.GetOrCreate(key, newStream)
		st.mu.Lock()
		if st.dead {
			st.mu.Unlock()
			continue
		}

		id, err := nextID(idSpec, st.last, uint64(s.now().UnixMilli()))
		if err == nil {
			err = validateNext(id, st.last)
		}
		if err != nil {
			// A rejected first append must not leave an empty stream behind.
			if st.tree.Len() == 0 {
				st.dead = true
				s.streams.DeleteIf(key, func(v *Stream) bool { return v == st })
			}
			st.mu.Unlock()
			return ID{}, err
		}

		st.tree.Insert(id.String(), &Entry{ID: id, Fields: append([]Field(nil), fields...)})
		st.last = id
		st.mu.Unlock()

		s.waits.Notify(key)
		return id, nil
	}
}

// Restore inserts entries loaded from a snapshot. Entries must be in
// ascending id order; anything not above the current last id is dropped.
func (s *Store) Restore(key string, entries []Entry) int {
	if len(entries) == 0 {
		return 0
	}
	for {
		st, _ := s.streams.GetOrCreate(key, newStream)
		st.mu.Lock()
		if st.dead {
			st.mu.Unlock()
			continue
		}
		n := 0
		for i := range entries {
			e := entries[i]
			if validateNext(e.ID, st.last) != nil {
				continue
			}
			st.tree.Insert(e.ID.String(), &e)
			st.last = e.ID
			n++
		}
		if st.tree.Len() == 0 {
			st.dead = true
			s.streams.DeleteIf(key, func(v *Stream) bool { return v == st })
		}
		st.mu.Unlock()
		return n
	}
}

// rangeBounds maps XRANGE arguments onto tree bounds. "-" is the smallest
// id and "+" is unbounded. A start without a sequence begins at sequence
// 0; an end without one covers every sequence of that millisecond.
func rangeBounds(start, end string) (Bounds, error) {
	var b Bounds
	if start == "-" {
		b.Start = ID{}.String()
	} else {
		id, err := ParseID(start, 0)
		if err != nil {
			return b, err
		}
		b.Start = id.String()
	}

	switch {
	case end == "+":
	case isBareMs(end):
		if _, err := ParseID(end, 0); err != nil {
			return b, err
		}
		// '~' sorts after every digit, so this bounds all "<ms>-<seq>".
		b.End = end + "-~"
	default:
		id, err := ParseID(end, 0)
		if err != nil {
			return b, err
		}
		b.End = id.String()
	}
	return b, nil
}

func isBareMs(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return false
		}
	}
	return s != ""
}

// Range returns entries with start <= id <= end.
func (s *Store) Range(key, start, end string) ([]Entry, error) {
	b, err := rangeBounds(start, end)
	if err != nil {
		return nil, err
	}
	st, ok := s.streams.Get(key)
	if !ok {
		return nil, nil
	}
	return st.walk(b), nil
}

// resolveAfter turns an XREAD id into an exclusive start bound. "$" is the
// current last id, "-" the smallest id.
func (s *Store) resolveAfter(key, after string) (string, error) {
	switch after {
	case "$":
		return s.LastID(key).String(), nil
	case "-":
		return ID{}.String(), nil
	}
	id, err := ParseID(after, 0)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ReadAfter returns entries with id strictly greater than after.
func (s *Store) ReadAfter(key, after string) ([]Entry, error) {
	start, err := s.resolveAfter(key, after)
	if err != nil {
		return nil, err
	}
	return s.readAfter(key, start), nil
}

func (s *Store) readAfter(key, start string) []Entry {
	st, ok := s.streams.Get(key)
	if !ok {
		return nil
	}
	return st.walk(Bounds{Start: start, StartExclusive: true})
}

// ReadRequest names one stream for ReadMulti.
type ReadRequest struct {
	Key   string
	After string
}

// ReadResult holds the entries read from one stream.
type ReadResult struct {
	Key     string
	Entries []Entry
}

// ReadMulti reads every requested stream. With block set it waits up to
// timeout (forever when timeout is 0) for an append to any of them when
// none has data yet. It returns nil when nothing arrived in time.
func (s *Store) ReadMulti(ctx context.Context, reqs []ReadRequest, block bool, timeout time.Duration) ([]ReadResult, error) {
	starts := make([]string, len(reqs))
	keys := make([]string, len(reqs))
	for i, r := range reqs {
		start, err := s.resolveAfter(r.Key, r.After)
		if err != nil {
			return nil, err
		}
		starts[i] = start
		keys[i] = r.Key
	}

	collect := func() []ReadResult {
		var out []ReadResult
		for i, r := range reqs {
			if entries := s.readAfter(r.Key, starts[i]); len(entries) > 0 {
				out = append(out, ReadResult{Key: r.Key, Entries: entries})
			}
		}
		return out
	}

	if !block {
		return collect(), nil
	}

	// Register before the first read so an append in between is not missed.
	w := s.waits.Register(keys...)
	defer s.waits.Abandon(w)

	if out := collect(); len(out) > 0 {
		return out, nil
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-w.C():
		return collect(), nil
	case <-timer:
	case <-ctx.Done():
		if !s.waits.Abandon(w) {
			return collect(), nil
		}
		return nil, ctx.Err()
	}

	if !s.waits.Abandon(w) {
		// An append won the race with the timer.
		return collect(), nil
	}
	return nil, nil
}

// ReadBlocking waits up to timeout for entries after id on a single stream.
func (s *Store) ReadBlocking(ctx context.Context, key, after string, timeout time.Duration) ([]Entry, error) {
	res, err := s.ReadMulti(ctx, []ReadRequest{{Key: key, After: after}}, true, timeout)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return res[0].Entries, nil
}

// LastID returns the greatest id in the stream, or 0-0.
func (s *Store) LastID(key string) ID {
	st, ok := s.streams.Get(key)
	if !ok {
		return ID{}
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.last
}

// Entries returns every entry of the stream in order.
func (s *Store) Entries(key string) []Entry {
	st, ok := s.streams.Get(key)
	if !ok {
		return nil
	}
	return st.walk(Bounds{})
}

// Len returns the number of entries in the stream at key.
func (s *Store) Len(key string) int {
	st, ok := s.streams.Get(key)
	if !ok {
		return 0
	}
	return st.Len()
}

// Contains reports whether key holds a stream.
func (s *Store) Contains(key string) bool {
	return s.streams.Has(key)
}

// Delete removes the stream at key.
func (s *Store) Delete(key string) bool {
	st, ok := s.streams.Pop(key)
	if !ok {
		return false
	}
	st.mu.Lock()
	st.dead = true
	st.mu.Unlock()
	return true
}

// Keys returns the keys of all streams.
func (s *Store) Keys() []string {
	return s.streams.Keys()
}

// Count returns the number of stream keys.
func (s *Store) Count() int {
	return s.streams.Count()
}

// Clear drops every stream.
func (s *Store) Clear() {
	s.streams.Clear()
}

// Waiters exposes the wait manager for introspection.
func (s *Store) Waiters() *WaitManager {
	return s.waits
}
