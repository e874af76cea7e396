package stream

import (
	"sort"
	"strings"
)

// Field is one field/value pair of an entry. Entries keep insertion order.
type Field struct {
	Name  string
	Value string
}

// Entry is one stream record.
type Entry struct {
	ID     ID
	Fields []Field
}

type radixNode struct {
	prefix   string
	children []*radixNode // sorted by first byte of prefix
	entry    *Entry
}

// Tree is a radix tree from textual stream id to entry.
// It is not safe for concurrent use; Stream serialises access.
type Tree struct {
	root radixNode
	size int
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return t.size
}

func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func (n *radixNode) childIndex(c byte) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return n.children[i].prefix[0] >= c
	})
	return i, i < len(n.children) && n.children[i].prefix[0] == c
}

func (n *radixNode) insertChild(i int, child *radixNode) {
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
}

// Insert stores e under key, replacing an existing entry with the same key.
func (t *Tree) Insert(key string, e *Entry) {
	n := &t.root
	rest := key
	for {
		if rest == "" {
			if n.entry == nil {
				t.size++
			}
			n.entry = e
			return
		}

		i, found := n.childIndex(rest[0])
		if !found {
			n.insertChild(i, &radixNode{prefix: rest, entry: e})
			t.size++
			return
		}

		child := n.children[i]
		cp := commonPrefix(child.prefix, rest)
		if cp == len(child.prefix) {
			n = child
			rest = rest[cp:]
			continue
		}

		// Split: keep the shared prefix, push the rest of child below it.
		split := &radixNode{prefix: child.prefix[:cp]}
		child.prefix = child.prefix[cp:]
		split.children = []*radixNode{child}
		n.children[i] = split

		if cp == len(rest) {
			split.entry = e
		} else {
			leaf := &radixNode{prefix: rest[cp:], entry: e}
			j, _ := split.childIndex(leaf.prefix[0])
			split.insertChild(j, leaf)
		}
		t.size++
		return
	}
}

// Get returns the entry stored under key.
func (t *Tree) Get(key string) (*Entry, bool) {
	n := &t.root
	rest := key
	for rest != "" {
		i, found := n.childIndex(rest[0])
		if !found || !strings.HasPrefix(rest, n.children[i].prefix) {
			return nil, false
		}
		n = n.children[i]
		rest = rest[len(n.prefix):]
	}
	return n.entry, n.entry != nil
}

// Bounds selects keys for Walk. Both ends are inclusive unless the
// matching Exclusive flag is set; an empty End means unbounded.
type Bounds struct {
	Start          string
	End            string
	StartExclusive bool
}

// Walk visits entries whose keys fall within b in lexical order until fn
// returns false.
func (t *Tree) Walk(b Bounds, fn func(e *Entry) bool) {
	t.walk(&t.root, "", b, fn)
}

func (t *Tree) walk(n *radixNode, acc string, b Bounds, fn func(e *Entry) bool) bool {
	key := acc + n.prefix

	// Every key below n starts with key. If key already sorts after End the
	// whole subtree does; if key sorts before Start and is not a prefix of
	// it, the whole subtree sorts before Start too.
	if b.End != "" && key > b.End {
		return false
	}
	if key < b.Start && !strings.HasPrefix(b.Start, key) {
		return true
	}

	if n.entry != nil && inBounds(key, b) {
		if !fn(n.entry) {
			return false
		}
	}
	for _, c := range n.children {
		if !t.walk(c, key, b, fn) {
			return false
		}
	}
	return true
}

func inBounds(key string, b Bounds) bool {
	if b.StartExclusive {
		if key <= b.Start {
			return false
		}
	} else if key < b.Start {
		return false
	}
	return b.End == "" || key <= b.End
}
