package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"testing"

	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/storage/stream"
)

// KeyCounts are the keyspace sizes benchmarks run at.
var KeyCounts = []int{1000, 10000, 100000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(b *testing.B) *storage.Engine {
	b.Helper()
	cfg := storage.DefaultConfig(b.TempDir())
	cfg.SweepInterval = 0
	cfg.Logger = quietLogger
	e, err := storage.New(cfg)
	if err != nil {
		b.Fatalf("storage.New: %v", err)
	}
	b.Cleanup(func() { e.Close() })
	return e
}

// prefill loads count keys of every type, spread as strings, lists,
// sorted sets and streams.
func prefill(b *testing.B, e *storage.Engine, count int) {
	b.Helper()
	fields := []stream.Field{{Name: "temperature", Value: "21"}, {Name: "humidity", Value: "40"}}
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("key:%d", i)
		switch i % 4 {
		case 0:
			e.Strings.Set(key, "value-"+key, 0)
		case 1:
			e.Lists.PushRight(key, "a", "b", "c")
		case 2:
			for m := 0; m < 8; m++ {
				e.ZSets.Add(key, fmt.Sprintf("m%d", m), rand.Float64())
			}
		case 3:
			for n := 0; n < 4; n++ {
				if _, err := e.Streams.Append(key, "*", fields); err != nil {
					b.Fatalf("Append: %v", err)
				}
			}
		}
	}
}

// reportMemory reports heap usage after a GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs benchFn once per keyspace size.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
