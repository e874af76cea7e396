package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/storage/stream"
)

type testClock struct {
	ms atomic.Int64
}

func (c *testClock) Now() time.Time         { return time.UnixMilli(c.ms.Load()) }
func (c *testClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

func newTestEngine(t *testing.T, dir string, clock *testClock) *Engine {
	t.Helper()
	cfg := DefaultConfig(dir)
	cfg.SweepInterval = 0
	if clock != nil {
		cfg.Clock = clock.Now
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func populate(t *testing.T, e *Engine) {
	t.Helper()
	e.Strings.Set("plain", "v", 0)
	e.Strings.Set("ttl", "t", time.Hour)
	e.Lists.PushRight("list", "a", "b", "c")
	e.ZSets.Add("z", "one", 1)
	e.ZSets.Add("z", "two", 2)
	for _, id := range []string{"1000-1", "1000-2", "2000-0"} {
		if _, err := e.Streams.Append("s", id, []stream.Field{{Name: "f", Value: id}}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/tmp/test-data")
	if cfg.Snapshot.Dir != "/tmp/test-data" {
		t.Errorf("Snapshot.Dir = %s", cfg.Snapshot.Dir)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %v, want %v", cfg.SweepInterval, DefaultSweepInterval)
	}
}

func TestEngine_TypeAndDelete(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)
	populate(t, e)

	tests := []struct {
		key  string
		want domain.KeyType
	}{
		{"plain", domain.TypeString},
		{"list", domain.TypeList},
		{"z", domain.TypeZSet},
		{"s", domain.TypeStream},
		{"missing", domain.TypeNone},
	}
	for _, tt := range tests {
		if got := e.Type(tt.key); got != tt.want {
			t.Errorf("Type(%s) = %s, want %s", tt.key, got, tt.want)
		}
	}

	if err := e.CheckType("list", domain.TypeZSet); !errors.Is(err, domain.ErrWrongType) {
		t.Errorf("CheckType() error = %v", err)
	}
	if err := e.CheckType("missing", domain.TypeZSet); err != nil {
		t.Errorf("CheckType(missing) error = %v", err)
	}

	if !e.Delete("z") || e.Exists("z") {
		t.Error("Delete(z) failed")
	}
	if e.Delete("z") {
		t.Error("Delete(z) twice reported success")
	}
}

func TestEngine_Keys(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)
	populate(t, e)

	got := e.Keys("*")
	want := []string{"list", "plain", "s", "ttl", "z"}
	if len(got) != len(want) {
		t.Fatalf("Keys(*) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys(*) = %v, want %v", got, want)
		}
	}
	if got := e.Keys("?"); len(got) != 2 {
		t.Errorf("Keys(?) = %v", got)
	}
	if e.DBSize() != 5 {
		t.Errorf("DBSize() = %d", e.DBSize())
	}
}

func TestEngine_SaveRecover(t *testing.T) {
	dir := t.TempDir()
	clock := &testClock{}
	clock.ms.Store(1_700_000_000_000)

	e := newTestEngine(t, dir, clock)
	populate(t, e)
	e.Strings.Set("short", "x", 10*time.Millisecond)

	info, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Keys != 6 {
		t.Errorf("Save() keys = %d, want 6", info.Keys)
	}

	clock.Advance(time.Second)
	restored := newTestEngine(t, dir, clock)
	if err := restored.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if got := restored.Keys("*"); len(got) != 5 {
		t.Errorf("restored keys = %v", got)
	}
	if restored.Exists("short") {
		t.Error("key expired before load was restored")
	}
	if v, _ := restored.Strings.Get("plain"); v != "v" {
		t.Errorf("plain = %q", v)
	}
	if got := restored.Lists.Items("list"); len(got) != 3 || got[2] != "c" {
		t.Errorf("list = %v", got)
	}
	if score, ok := restored.ZSets.Score("z", "two"); !ok || score != 2 {
		t.Errorf("z two = %v, %v", score, ok)
	}
	if restored.Streams.Len("s") != 3 || restored.Streams.LastID("s").String() != "2000-0" {
		t.Errorf("stream len = %d last = %s", restored.Streams.Len("s"), restored.Streams.LastID("s"))
	}
	// The ttl key keeps its deadline.
	clock.Advance(2 * time.Hour)
	if restored.Strings.Contains("ttl") {
		t.Error("ttl lost its expiry across the snapshot")
	}
}

func TestEngine_RecoverWithoutSnapshot(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)
	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if e.DBSize() != 0 {
		t.Errorf("DBSize() = %d", e.DBSize())
	}
}

func TestEngine_LoadRDBReplacesKeyspace(t *testing.T) {
	src := newTestEngine(t, t.TempDir(), nil)
	populate(t, src)
	data, err := src.DumpBytes()
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestEngine(t, t.TempDir(), nil)
	dst.Strings.Set("stale", "x", 0)
	n, err := dst.LoadRDB(data)
	if err != nil {
		t.Fatalf("LoadRDB: %v", err)
	}
	if n != 5 || dst.Exists("stale") {
		t.Errorf("LoadRDB() = %d, stale present = %v", n, dst.Exists("stale"))
	}

	// The image is persisted as the local snapshot.
	if _, err := dst.Snapshot().Load(time.Now()); err != nil {
		t.Errorf("snapshot not persisted: %v", err)
	}
}

func TestEngine_Sweeper(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.SweepInterval = 5 * time.Millisecond
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.Strings.Set("k", "v", 10*time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for e.Strings.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not remove the expired key")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
