package cmap

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},  // invalid → default
		{-1, DefaultShardCount}, // invalid → default
		{3, DefaultShardCount},  // not power of 2 → default
		{1, 1},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[int]()

	m.Set("key1", 100)
	m.Set("key2", 200)

	if val, ok := m.Get("key1"); !ok || val != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", val, ok)
	}
	if val, ok := m.Get("nonexistent"); ok {
		t.Errorf("Get(nonexistent) = (%d, %v), want (0, false)", val, ok)
	}

	if !m.Delete("key1") {
		t.Error("Delete(key1) = false, want true")
	}
	if m.Delete("key1") {
		t.Error("second Delete(key1) = true, want false")
	}
	if m.Has("key1") {
		t.Error("key1 should not exist after deletion")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestGetOrCreate(t *testing.T) {
	m := New[*int]()
	calls := 0
	create := func() *int {
		calls++
		v := 7
		return &v
	}

	first, existed := m.GetOrCreate("k", create)
	if existed {
		t.Error("first GetOrCreate reported existing value")
	}
	second, existed := m.GetOrCreate("k", create)
	if !existed {
		t.Error("second GetOrCreate reported new value")
	}
	if first != second {
		t.Error("GetOrCreate returned different pointers for the same key")
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestCompute(t *testing.T) {
	m := New[int]()

	v, ok := m.Compute("n", func(cur int, exists bool) (int, bool) {
		if exists {
			t.Error("exists = true for a new key")
		}
		return cur + 5, true
	})
	if !ok || v != 5 {
		t.Errorf("Compute() = (%d, %v), want (5, true)", v, ok)
	}

	_, ok = m.Compute("n", func(cur int, exists bool) (int, bool) {
		return 0, false
	})
	if ok || m.Has("n") {
		t.Error("Compute with keep=false should remove the key")
	}
}

func TestDeleteIfAndSweep(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	if m.DeleteIf("3", func(v int) bool { return v > 5 }) {
		t.Error("DeleteIf removed a value that does not match")
	}
	if !m.DeleteIf("7", func(v int) bool { return v > 5 }) {
		t.Error("DeleteIf did not remove a matching value")
	}

	removed := m.Sweep(func(_ string, v int) bool { return v%2 == 0 })
	if removed != 5 {
		t.Errorf("Sweep() removed %d, want 5", removed)
	}

	keys := m.Keys()
	sort.Strings(keys)
	want := []string{"1", "3", "5", "9"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestPop(t *testing.T) {
	m := New[string]()
	m.Set("a", "x")

	if v, ok := m.Pop("a"); !ok || v != "x" {
		t.Errorf("Pop(a) = (%q, %v), want (\"x\", true)", v, ok)
	}
	if _, ok := m.Pop("a"); ok {
		t.Error("Pop on missing key returned ok")
	}
}

func TestRangeEarlyStop(t *testing.T) {
	m := New[int]()
	for i := 0; i < 100; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	count := 0
	m.Range(func(string, int) bool {
		count++
		return count < 10
	})
	if count != 10 {
		t.Errorf("Range stopped at %d, want 10", count)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	const workers, ops = 50, 500

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				key := strconv.Itoa(base*ops + j)
				m.Set(key, j)
				m.Get(key)
				m.Compute(key, func(v int, _ bool) (int, bool) { return v + 1, true })
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != workers*ops {
		t.Errorf("Count() = %d, want %d", m.Count(), workers*ops)
	}
}

func BenchmarkGet(b *testing.B) {
	m := New[int]()
	for i := 0; i < 1000; i++ {
		m.Set(strconv.Itoa(i), i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Get(strconv.Itoa(i % 1000))
	}
}
