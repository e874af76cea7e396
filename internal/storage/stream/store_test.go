package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func fields(kv ...string) []Field {
	out := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Field{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID.String()
	}
	return out
}

func TestStore_AppendMonotonic(t *testing.T) {
	s := NewStore(WithClock(fixedClock(1526919030474)))

	first, err := s.Append("s", "*", fields("temp", "36"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	second, err := s.Append("s", "*", fields("temp", "37"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.String() != "1526919030474-0" || second.String() != "1526919030474-1" {
		t.Errorf("ids = %v, %v", first, second)
	}

	if _, err := s.Append("s", "1526919030474-1", fields("a", "b")); !errors.Is(err, domain.ErrStreamIDNotGreater) {
		t.Errorf("duplicate id error = %v", err)
	}
	if _, err := s.Append("s", "1-1", fields("a", "b")); !errors.Is(err, domain.ErrStreamIDNotGreater) {
		t.Errorf("smaller id error = %v", err)
	}
	if s.Len("s") != 2 {
		t.Errorf("Len() = %d, want 2", s.Len("s"))
	}
	if got := s.LastID("s"); got != second {
		t.Errorf("LastID() = %v, want %v", got, second)
	}
}

func TestStore_AppendRejectedDoesNotCreate(t *testing.T) {
	s := NewStore()
	if _, err := s.Append("s", "0-0", fields("a", "b")); !errors.Is(err, domain.ErrStreamIDTooSmall) {
		t.Fatalf("Append(0-0) error = %v", err)
	}
	if s.Contains("s") {
		t.Error("rejected append created the stream")
	}
}

func TestStore_FieldsKeepOrder(t *testing.T) {
	s := NewStore()
	if _, err := s.Append("s", "1-1", fields("z", "1", "a", "2", "m", "3")); err != nil {
		t.Fatal(err)
	}
	got := s.Entries("s")[0].Fields
	want := fields("z", "1", "a", "2", "m", "3")
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields = %v, want %v", got, want)
		}
	}
}

func TestStore_Range(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"1000-0", "1000-1", "1000-2", "2000-0", "3000-0"} {
		if _, err := s.Append("s", id, fields("f", id)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		start, end string
		want       []string
	}{
		{"-", "+", []string{"1000-0", "1000-1", "1000-2", "2000-0", "3000-0"}},
		{"1000-1", "2000-0", []string{"1000-1", "1000-2", "2000-0"}},
		{"1000", "1000", []string{"1000-0", "1000-1", "1000-2"}},
		{"2000", "+", []string{"2000-0", "3000-0"}},
		{"4000", "+", []string{}},
	}
	for _, tt := range tests {
		got, err := s.Range("s", tt.start, tt.end)
		if err != nil {
			t.Fatalf("Range(%s, %s) error = %v", tt.start, tt.end, err)
		}
		if g := strings.Join(ids(got), " "); g != strings.Join(tt.want, " ") {
			t.Errorf("Range(%s, %s) = %v, want %v", tt.start, tt.end, g, tt.want)
		}
	}

	if _, err := s.Range("s", "bad", "+"); !errors.Is(err, domain.ErrStreamIDInvalid) {
		t.Errorf("Range(bad) error = %v", err)
	}
	if got, _ := s.Range("missing", "-", "+"); len(got) != 0 {
		t.Errorf("Range(missing) = %v", got)
	}
}

func TestStore_ReadAfterIsExclusive(t *testing.T) {
	s := NewStore()
	s.Append("s", "1-1", fields("a", "1"))
	s.Append("s", "1-2", fields("a", "2"))

	got, err := s.ReadAfter("s", "1-1")
	if err != nil {
		t.Fatal(err)
	}
	if g := ids(got); len(g) != 1 || g[0] != "1-2" {
		t.Errorf("ReadAfter(1-1) = %v", g)
	}

	got, _ = s.ReadAfter("s", "$")
	if len(got) != 0 {
		t.Errorf("ReadAfter($) = %v, want empty", ids(got))
	}
}

func TestStore_ReadBlockingWakesOnAppend(t *testing.T) {
	s := NewStore()
	s.Append("s", "1-1", fields("a", "1"))

	done := make(chan []Entry, 1)
	go func() {
		entries, err := s.ReadBlocking(context.Background(), "s", "$", 5*time.Second)
		if err != nil {
			t.Errorf("ReadBlocking() error = %v", err)
		}
		done <- entries
	}()

	waitFor(t, func() bool { return s.Waiters().Pending("s") == 1 })
	if _, err := s.Append("s", "1-2", fields("a", "2")); err != nil {
		t.Fatal(err)
	}

	select {
	case entries := <-done:
		if g := ids(entries); len(g) != 1 || g[0] != "1-2" {
			t.Errorf("ReadBlocking() = %v, want [1-2]", g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader was not woken")
	}
	if n := s.Waiters().Pending("s"); n != 0 {
		t.Errorf("Pending() = %d after wake", n)
	}
}

func TestStore_ReadBlockingTimeout(t *testing.T) {
	s := NewStore()
	start := time.Now()
	entries, err := s.ReadBlocking(context.Background(), "s", "$", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("ReadBlocking() = %v, want nil", entries)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("returned before the timeout")
	}
	if n := s.Waiters().Pending("s"); n != 0 {
		t.Errorf("Pending() = %d after timeout", n)
	}
}

func TestStore_ReadBlockingContextCancel(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := s.ReadBlocking(ctx, "s", "$", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadBlocking() error = %v, want context.Canceled", err)
	}
}

func TestStore_ReadBlockingReturnsExistingData(t *testing.T) {
	s := NewStore()
	s.Append("s", "5-0", fields("a", "1"))
	entries, err := s.ReadBlocking(context.Background(), "s", "0-0", time.Second)
	if err != nil || len(entries) != 1 {
		t.Errorf("ReadBlocking() = %v, %v", ids(entries), err)
	}
}

func TestStore_AppendWakesAllReaders(t *testing.T) {
	s := NewStore()
	const readers = 5

	var wg sync.WaitGroup
	results := make(chan int, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, _ := s.ReadBlocking(context.Background(), "s", "$", 5*time.Second)
			results <- len(entries)
		}()
	}

	waitFor(t, func() bool { return s.Waiters().Pending("s") == readers })
	s.Append("s", "1-1", fields("a", "1"))
	wg.Wait()
	close(results)

	for n := range results {
		if n != 1 {
			t.Errorf("reader got %d entries, want 1", n)
		}
	}
}

func TestStore_ReadMultiAnyKey(t *testing.T) {
	s := NewStore()
	done := make(chan []ReadResult, 1)
	go func() {
		res, _ := s.ReadMulti(context.Background(), []ReadRequest{
			{Key: "a", After: "$"},
			{Key: "b", After: "$"},
		}, true, 5*time.Second)
		done <- res
	}()

	waitFor(t, func() bool { return s.Waiters().Pending("b") == 1 })
	s.Append("b", "1-1", fields("x", "y"))

	res := <-done
	if len(res) != 1 || res[0].Key != "b" {
		t.Fatalf("ReadMulti() = %+v", res)
	}
	if s.Waiters().Pending("a") != 0 {
		t.Error("waiter left registered on the other key")
	}
}

func TestStore_DeleteAndRestore(t *testing.T) {
	s := NewStore()
	s.Append("s", "1-1", fields("a", "1"))
	if !s.Delete("s") || s.Contains("s") {
		t.Fatal("Delete() failed")
	}

	n := s.Restore("s", []Entry{
		{ID: ID{1, 1}, Fields: fields("a", "1")},
		{ID: ID{1, 1}, Fields: fields("a", "dup")},
		{ID: ID{2, 0}, Fields: fields("a", "2")},
	})
	if n != 2 || s.Len("s") != 2 || s.LastID("s") != (ID{2, 0}) {
		t.Errorf("Restore() = %d, Len = %d, LastID = %v", n, s.Len("s"), s.LastID("s"))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met")
}
