package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestListStore_PushPop(t *testing.T) {
	s := NewListStore()

	if n := s.PushRight("l", "a", "b"); n != 2 {
		t.Errorf("PushRight() = %d, want 2", n)
	}
	if n := s.PushLeft("l", "x", "y"); n != 4 {
		t.Errorf("PushLeft() = %d, want 4", n)
	}
	if got := fmt.Sprint(s.Items("l")); got != "[y x a b]" {
		t.Errorf("Items() = %s", got)
	}

	if v, ok := s.PopLeft("l"); !ok || v != "y" {
		t.Errorf("PopLeft() = %q, %v", v, ok)
	}
	if v, ok := s.PopRight("l"); !ok || v != "b" {
		t.Errorf("PopRight() = %q, %v", v, ok)
	}
	s.PopLeft("l")
	s.PopLeft("l")

	if _, ok := s.PopLeft("l"); ok {
		t.Error("PopLeft() on empty list succeeded")
	}
	if s.Contains("l") {
		t.Error("emptied list is still stored")
	}
}

func TestListStore_PopN(t *testing.T) {
	s := NewListStore()
	s.PushRight("l", "a", "b", "c", "d")

	if got, ok := s.PopLeftN("l", 2); !ok || fmt.Sprint(got) != "[a b]" {
		t.Errorf("PopLeftN(2) = %v, %v", got, ok)
	}
	if got, ok := s.PopRightN("l", 1<<62); !ok || fmt.Sprint(got) != "[d c]" {
		t.Errorf("PopRightN(huge) = %v, %v", got, ok)
	}
	if s.Contains("l") {
		t.Error("emptied list is still stored")
	}
	if got, ok := s.PopLeftN("l", 3); ok || len(got) != 0 {
		t.Errorf("PopLeftN() on missing key = %v, %v", got, ok)
	}

	s.PushRight("z", "x")
	if got, ok := s.PopLeftN("z", 0); !ok || len(got) != 0 || !s.Contains("z") {
		t.Errorf("PopLeftN(0) = %v, %v", got, ok)
	}
}

func TestListStore_Range(t *testing.T) {
	s := NewListStore()
	s.PushRight("l", "a", "b", "c", "d", "e")

	tests := []struct {
		start, stop int
		want        string
	}{
		{0, -1, "[a b c d e]"},
		{1, 2, "[b c]"},
		{-2, -1, "[d e]"},
		{-100, 1, "[a b]"},
		{3, 100, "[d e]"},
		{3, 1, "[]"},
		{10, 20, "[]"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.start, tt.stop), func(t *testing.T) {
			if got := fmt.Sprint(s.Range("l", tt.start, tt.stop)); got != tt.want {
				t.Errorf("Range(%d, %d) = %s, want %s", tt.start, tt.stop, got, tt.want)
			}
		})
	}
	if got := s.Range("missing", 0, -1); len(got) != 0 {
		t.Errorf("Range(missing) = %v", got)
	}
}

func TestListStore_Remove(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  string
		n     int
	}{
		{"from head", 2, "[b a c a]", 2},
		{"from tail", -2, "[a b a c]", 2},
		{"all", 0, "[b c]", 4},
		{"more than present", 10, "[b c]", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewListStore()
			s.PushRight("l", "a", "b", "a", "a", "c", "a")
			if n := s.Remove("l", tt.count, "a"); n != tt.n {
				t.Errorf("Remove() = %d, want %d", n, tt.n)
			}
			if got := fmt.Sprint(s.Items("l")); got != tt.want {
				t.Errorf("Items() = %s, want %s", got, tt.want)
			}
		})
	}

	s := NewListStore()
	s.PushRight("l", "a")
	s.Remove("l", 0, "a")
	if s.Contains("l") {
		t.Error("list emptied by Remove is still stored")
	}
}

func TestListStore_ConcurrentPushPop(t *testing.T) {
	s := NewListStore()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range n {
			s.PushRight("q", fmt.Sprintf("r%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := range n {
			s.PushLeft("q", fmt.Sprintf("l%d", i))
		}
	}()
	wg.Wait()

	if s.Len("q") != 2*n {
		t.Fatalf("Len() = %d, want %d", s.Len("q"), 2*n)
	}

	// Left pushes read newest first, right pushes oldest first.
	nextLeft, nextRight := n-1, 0
	for _, v := range s.Items("q") {
		var i int
		if _, err := fmt.Sscanf(v[1:], "%d", &i); err != nil {
			t.Fatalf("bad item %q", v)
		}
		switch v[0] {
		case 'l':
			if i != nextLeft {
				t.Fatalf("got %s, want l%d", v, nextLeft)
			}
			nextLeft--
		case 'r':
			if i != nextRight {
				t.Fatalf("got %s, want r%d", v, nextRight)
			}
			nextRight++
		}
	}

	popped := 0
	var mu sync.Mutex
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := s.PopLeft("q"); !ok {
					return
				}
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if popped != 2*n || s.Contains("q") {
		t.Errorf("popped %d, Contains = %v", popped, s.Contains("q"))
	}
}
