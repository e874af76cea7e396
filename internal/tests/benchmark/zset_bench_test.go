package benchmark

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/yndnr/memkv-go/internal/storage/zset"
)

func filledZSet(b *testing.B, n int) *zset.Store {
	b.Helper()
	s := zset.NewStore()
	for i := 0; i < n; i++ {
		s.Add("board", fmt.Sprintf("player:%d", i), float64(rand.IntN(n)))
	}
	return s
}

func BenchmarkZSetAdd(b *testing.B) {
	runWithKeyCounts(b, KeyCounts, func(b *testing.B, count int) {
		s := filledZSet(b, count)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			s.Add("board", fmt.Sprintf("player:%d", i%count), float64(i))
		}
	})
}

func BenchmarkZSetRank(b *testing.B) {
	runWithKeyCounts(b, KeyCounts, func(b *testing.B, count int) {
		s := filledZSet(b, count)
		members := make([]string, 1024)
		for i := range members {
			members[i] = fmt.Sprintf("player:%d", rand.IntN(count))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, ok := s.Rank("board", members[i%len(members)]); !ok {
				b.Fatal("member missing")
			}
		}
	})
}

func BenchmarkZSetRangeByScore(b *testing.B) {
	runWithKeyCounts(b, KeyCounts, func(b *testing.B, count int) {
		s := filledZSet(b, count)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			lo := float64(rand.IntN(count))
			_ = s.RangeByScore("board", lo, lo+10)
		}
	})
}

func BenchmarkZSetParallelIncr(b *testing.B) {
	s := zset.NewStore()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = s.IncrBy(fmt.Sprintf("board:%d", i%16), fmt.Sprintf("p%d", i%256), 1)
			i++
		}
	})
}
