package zset

import "math/rand/v2"

// MaxLevel is the maximum number of forward levels of a node.
const MaxLevel = 16

// nilNode marks the end of a level. Index 0 is the header, which is never
// the target of a forward pointer.
const nilNode = 0

// Member is one (member, score) pair of a sorted set.
type Member struct {
	Name  string
	Score float64
}

type node struct {
	member  string
	score   float64
	forward []int
}

// SkipList is an ordered index over (score, member) pairs.
// It is not safe for concurrent use; ZSet serialises access.
type SkipList struct {
	nodes  []node
	free   []int
	level  int
	length int
}

// NewSkipList returns an empty skip list.
func NewSkipList() *SkipList {
	sl := &SkipList{level: 1}
	sl.nodes = append(sl.nodes, node{forward: make([]int, MaxLevel)})
	return sl
}

// less reports whether (s1, m1) sorts before (s2, m2).
func less(s1 float64, m1 string, s2 float64, m2 string) bool {
	if s1 != s2 {
		return s1 < s2
	}
	return m1 < m2
}

func randomLevel() int {
	lvl := 1
	for lvl < MaxLevel && rand.Uint32()&1 == 1 {
		lvl++
	}
	return lvl
}

func (sl *SkipList) alloc(member string, score float64, lvl int) int {
	n := node{member: member, score: score, forward: make([]int, lvl)}
	if k := len(sl.free); k > 0 {
		idx := sl.free[k-1]
		sl.free = sl.free[:k-1]
		sl.nodes[idx] = n
		return idx
	}
	sl.nodes = append(sl.nodes, n)
	return len(sl.nodes) - 1
}

func (sl *SkipList) release(idx int) {
	sl.nodes[idx] = node{}
	sl.free = append(sl.free, idx)
}

// Len returns the number of elements.
func (sl *SkipList) Len() int {
	return sl.length
}

// findUpdate fills update with the rightmost node at each level that sorts
// strictly before (score, member).
func (sl *SkipList) findUpdate(score float64, member string, update *[MaxLevel]int) {
	x := 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			next := sl.nodes[x].forward[i]
			if next == nilNode || !less(sl.nodes[next].score, sl.nodes[next].member, score, member) {
				break
			}
			x = next
		}
		update[i] = x
	}
}

// Insert adds (member, score). The caller guarantees the pair is not present.
func (sl *SkipList) Insert(member string, score float64) {
	var update [MaxLevel]int
	sl.findUpdate(score, member, &update)

	lvl := randomLevel()
	if lvl > sl.level {
		for i := sl.level; i < lvl; i++ {
			update[i] = 0
		}
		sl.level = lvl
	}

	idx := sl.alloc(member, score, lvl)
	for i := 0; i < lvl; i++ {
		sl.nodes[idx].forward[i] = sl.nodes[update[i]].forward[i]
		sl.nodes[update[i]].forward[i] = idx
	}
	sl.length++
}

// Delete removes the node matching (member, score) exactly.
func (sl *SkipList) Delete(member string, score float64) bool {
	var update [MaxLevel]int
	sl.findUpdate(score, member, &update)

	target := sl.nodes[update[0]].forward[0]
	if target == nilNode || sl.nodes[target].score != score || sl.nodes[target].member != member {
		return false
	}
	sl.unlink(target, &update)
	return true
}

func (sl *SkipList) unlink(idx int, update *[MaxLevel]int) {
	for i := 0; i < sl.level; i++ {
		if sl.nodes[update[i]].forward[i] == idx {
			sl.nodes[update[i]].forward[i] = sl.nodes[idx].forward[i]
		}
	}
	for sl.level > 1 && sl.nodes[0].forward[sl.level-1] == nilNode {
		sl.level--
	}
	sl.release(idx)
	sl.length--
}

// Rank returns the 0-based position of (member, score) in ascending order.
func (sl *SkipList) Rank(member string, score float64) (int, bool) {
	rank := 0
	for x := sl.nodes[0].forward[0]; x != nilNode; x = sl.nodes[x].forward[0] {
		n := &sl.nodes[x]
		if n.score == score && n.member == member {
			return rank, true
		}
		if less(score, member, n.score, n.member) {
			break
		}
		rank++
	}
	return 0, false
}

// firstInScore returns the first node with score >= min.
func (sl *SkipList) firstInScore(min float64) int {
	x := 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			next := sl.nodes[x].forward[i]
			if next == nilNode || sl.nodes[next].score >= min {
				break
			}
			x = next
		}
	}
	return sl.nodes[x].forward[0]
}

// RangeByScore returns the members with min <= score <= max in ascending order.
func (sl *SkipList) RangeByScore(min, max float64) []Member {
	var out []Member
	for x := sl.firstInScore(min); x != nilNode; x = sl.nodes[x].forward[0] {
		n := &sl.nodes[x]
		if n.score > max {
			break
		}
		out = append(out, Member{Name: n.member, Score: n.score})
	}
	return out
}

// CountByScore returns the number of members with min <= score <= max.
func (sl *SkipList) CountByScore(min, max float64) int {
	count := 0
	for x := sl.firstInScore(min); x != nilNode && sl.nodes[x].score <= max; x = sl.nodes[x].forward[0] {
		count++
	}
	return count
}

// RangeByRank returns the members at positions start..stop inclusive.
// Bounds must already be normalised to 0 <= start <= stop < Len().
func (sl *SkipList) RangeByRank(start, stop int) []Member {
	out := make([]Member, 0, stop-start+1)
	rank := 0
	for x := sl.nodes[0].forward[0]; x != nilNode && rank <= stop; x = sl.nodes[x].forward[0] {
		if rank >= start {
			out = append(out, Member{Name: sl.nodes[x].member, Score: sl.nodes[x].score})
		}
		rank++
	}
	return out
}

// DeleteRangeByScore removes and returns every member with min <= score <= max.
func (sl *SkipList) DeleteRangeByScore(min, max float64) []Member {
	victims := sl.RangeByScore(min, max)
	for _, m := range victims {
		sl.Delete(m.Name, m.Score)
	}
	return victims
}

// DeleteRangeByRank removes and returns the members at positions start..stop.
func (sl *SkipList) DeleteRangeByRank(start, stop int) []Member {
	victims := sl.RangeByRank(start, stop)
	for _, m := range victims {
		sl.Delete(m.Name, m.Score)
	}
	return victims
}

// All returns every member in ascending order.
func (sl *SkipList) All() []Member {
	if sl.length == 0 {
		return nil
	}
	return sl.RangeByRank(0, sl.length-1)
}
