package memory

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
)

type fakeClock struct {
	ms atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.ms.Store(1_700_000_000_000)
	return c
}

func (c *fakeClock) Now() time.Time {
	return time.UnixMilli(c.ms.Load())
}

func (c *fakeClock) Advance(d time.Duration) {
	c.ms.Add(d.Milliseconds())
}

func TestStringStore_SetGet(t *testing.T) {
	s := NewStringStore()
	s.Set("k", "v", 0)
	if v, ok := s.Get("k"); !ok || v != "v" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) found a value")
	}
	if !s.Delete("k") || s.Contains("k") {
		t.Error("Delete() did not remove the key")
	}
	if s.Delete("k") {
		t.Error("second Delete() reported a removal")
	}
}

func TestStringStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	s := NewStringStore(WithClock(clock.Now))

	s.Set("k", "v", 10*time.Millisecond)
	if !s.Contains("k") {
		t.Fatal("key missing before its deadline")
	}

	clock.Advance(15 * time.Millisecond)
	if _, ok := s.Get("k"); ok {
		t.Error("Get() returned an expired key")
	}
	if s.Contains("k") {
		t.Error("Contains() reported an expired key")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, lazy read did not evict", s.Count())
	}
}

func TestStringStore_SetClearsExpiry(t *testing.T) {
	clock := newFakeClock()
	s := NewStringStore(WithClock(clock.Now))

	s.Set("k", "v", 10*time.Millisecond)
	s.Set("k", "w", 0)
	clock.Advance(time.Second)
	if v, ok := s.Get("k"); !ok || v != "w" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
}

func TestStringStore_SweepExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewStringStore(WithClock(clock.Now))

	s.Set("a", "1", 10*time.Millisecond)
	s.Set("b", "2", 10*time.Millisecond)
	s.Set("c", "3", 0)
	s.SetWithDeadline("d", "4", clock.Now().Add(time.Hour))

	clock.Advance(20 * time.Millisecond)
	if n := s.SweepExpired(clock.Now()); n != 2 {
		t.Errorf("SweepExpired() = %d, want 2", n)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %v", entries)
	}
	for _, e := range entries {
		if e.Key == "d" && e.ExpireAt.IsZero() {
			t.Error("Entries() lost the deadline of d")
		}
		if e.Key == "c" && !e.ExpireAt.IsZero() {
			t.Error("Entries() invented a deadline for c")
		}
	}
}

func TestStringStore_Incr(t *testing.T) {
	s := NewStringStore()

	n, err := s.Incr("counter")
	if err != nil || n != 1 {
		t.Fatalf("Incr(absent) = %d, %v", n, err)
	}
	n, _ = s.Incr("counter")
	if n != 2 {
		t.Errorf("Incr() = %d, want 2", n)
	}

	s.Set("text", "abc", 0)
	if _, err := s.Incr("text"); !errors.Is(err, domain.ErrNotInteger) {
		t.Errorf("Incr(text) error = %v", err)
	}
	if v, _ := s.Get("text"); v != "abc" {
		t.Errorf("failed Incr changed the value to %q", v)
	}
}

func TestStringStore_IncrKeepsExpiry(t *testing.T) {
	clock := newFakeClock()
	s := NewStringStore(WithClock(clock.Now))
	s.Set("k", "5", 10*time.Millisecond)
	s.Incr("k")
	clock.Advance(20 * time.Millisecond)
	if s.Contains("k") {
		t.Error("Incr dropped the expiry")
	}
}

func TestStringStore_IncrByMultiplies(t *testing.T) {
	s := NewStringStore()

	tests := []struct {
		name    string
		initial string
		factor  int64
		want    int64
		wantErr error
	}{
		{"multiply", "6", 7, 42, nil},
		{"negative", "6", -2, -12, nil},
		{"zero", "6", 0, 0, nil},
		{"not integer", "x", 2, 0, domain.ErrNotInteger},
		{"overflow", "9223372036854775807", 2, 0, domain.ErrNotInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Set("k", tt.initial, 0)
			got, err := s.IncrBy("k", tt.factor)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("IncrBy() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("IncrBy() = %d, %v, want %d", got, err, tt.want)
			}
		})
	}

	n, err := s.IncrBy("absent", 5)
	if err != nil || n != 0 {
		t.Errorf("IncrBy(absent) = %d, %v", n, err)
	}
	if s.Contains("absent") {
		t.Error("IncrBy created an absent key")
	}
}

func TestStringStore_ConcurrentIncr(t *testing.T) {
	s := NewStringStore()
	const workers, perWorker = 8, 250

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				s.Incr("c")
			}
		}()
	}
	wg.Wait()

	if v, _ := s.Get("c"); v != "2000" {
		t.Errorf("counter = %s, want 2000", v)
	}
}
