package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/storage/memory"
	"github.com/yndnr/memkv-go/internal/storage/rdb"
	"github.com/yndnr/memkv-go/internal/storage/snapshot"
	"github.com/yndnr/memkv-go/internal/storage/stream"
	"github.com/yndnr/memkv-go/internal/storage/zset"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultSweepInterval = 100 * time.Millisecond
)

// Config configures the storage engine.
type Config struct {
	// Snapshot locates the snapshot file.
	Snapshot snapshot.Config

	// SweepInterval is the period of the expiry sweeper. Zero disables it.
	SweepInterval time.Duration

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time

	// Metrics receives storage metrics; nil disables them.
	Metrics *metric.Registry

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Snapshot:      snapshot.DefaultConfig(dir),
		SweepInterval: DefaultSweepInterval,
		Logger:        slog.Default(),
	}
}

// Engine is the keyspace: strings, lists, sorted sets and streams.
type Engine struct {
	cfg Config

	Strings *memory.StringStore
	Lists   *memory.ListStore
	ZSets   *zset.Store
	Streams *stream.Store

	snapshot *snapshot.Manager
	metrics  *metric.Registry
	now      func() time.Time
	logger   *slog.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New creates the engine and starts the expiry sweeper. It does not load
// the snapshot; call Recover for that.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	snapMgr, err := snapshot.NewManager(cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		Strings:  memory.NewStringStore(memory.WithClock(cfg.Clock)),
		Lists:    memory.NewListStore(),
		ZSets:    zset.NewStore(),
		Streams:  stream.NewStore(stream.WithClock(cfg.Clock)),
		snapshot: snapMgr,
		metrics:  cfg.Metrics,
		now:      cfg.Clock,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go e.backgroundLoop()
	} else {
		close(e.doneCh)
	}
	return e, nil
}

// Snapshot returns the snapshot manager.
func (e *Engine) Snapshot() *snapshot.Manager {
	return e.snapshot
}

// Recover loads the snapshot file into the stores. A missing file is not
// an error. A damaged file is loaded up to the damage and the error is
// logged, not returned.
func (e *Engine) Recover(ctx context.Context) error {
	start := time.Now()
	snap, err := e.snapshot.Load(e.now())
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		e.logger.Info("no snapshot found, starting with empty keyspace",
			"path", e.snapshot.Path())
		return nil
	case err != nil && snap == nil:
		return err
	case err != nil:
		e.logger.Error("snapshot load stopped early, keeping partial data",
			"path", e.snapshot.Path(),
			"keys_loaded", snap.Len(),
			"error", err)
	}

	n := e.Restore(snap)
	e.logger.Info("snapshot loaded",
		"path", e.snapshot.Path(),
		"keys", n,
		"elapsed", time.Since(start))
	e.updateKeyMetrics()
	return nil
}

// LoadRDB replaces the keyspace with an RDB image received from a master
// and persists the image as the local snapshot file.
func (e *Engine) LoadRDB(data []byte) (int, error) {
	if err := e.snapshot.WriteRaw(data); err != nil {
		e.logger.Warn("persist resync snapshot failed", "error", err)
	}

	snap, err := rdb.Decode(bytes.NewReader(data), e.now())
	e.Flush()
	n := e.Restore(snap)
	e.updateKeyMetrics()
	if err != nil {
		return n, fmt.Errorf("storage: decode rdb: %w", err)
	}
	return n, nil
}

// Restore copies every record of snap into the stores and returns the
// number of keys restored. Existing keys of the same name are replaced.
func (e *Engine) Restore(snap *rdb.Snapshot) int {
	if snap == nil {
		return 0
	}
	n := 0
	for _, r := range snap.Strings {
		e.Delete(r.Key)
		e.Strings.SetWithDeadline(r.Key, r.Value, r.ExpireAt)
		n++
	}
	for _, r := range snap.Lists {
		e.Delete(r.Key)
		e.Lists.PushRight(r.Key, r.Items...)
		n++
	}
	for _, r := range snap.ZSets {
		e.Delete(r.Key)
		for _, m := range r.Members {
			e.ZSets.Add(r.Key, m.Name, m.Score)
		}
		n++
	}
	for _, r := range snap.Streams {
		e.Delete(r.Key)
		if e.Streams.Restore(r.Key, r.Entries) > 0 {
			n++
		}
	}
	return n
}

// Dump copies the keyspace into a snapshot image. Writes that race with
// the copy may or may not be included.
func (e *Engine) Dump() *rdb.Snapshot {
	snap := &rdb.Snapshot{}
	for _, se := range e.Strings.Entries() {
		snap.Strings = append(snap.Strings, rdb.String{Key: se.Key, Value: se.Value, ExpireAt: se.ExpireAt})
	}
	for _, k := range sortedKeys(e.Streams.Keys()) {
		if entries := e.Streams.Entries(k); len(entries) > 0 {
			snap.Streams = append(snap.Streams, rdb.Stream{Key: k, Entries: entries})
		}
	}
	for _, k := range sortedKeys(e.Lists.Keys()) {
		if items := e.Lists.Items(k); len(items) > 0 {
			snap.Lists = append(snap.Lists, rdb.List{Key: k, Items: items})
		}
	}
	for _, k := range sortedKeys(e.ZSets.Keys()) {
		if members := e.ZSets.Members(k); len(members) > 0 {
			snap.ZSets = append(snap.ZSets, rdb.ZSet{Key: k, Members: members})
		}
	}
	sort.Slice(snap.Strings, func(i, j int) bool { return snap.Strings[i].Key < snap.Strings[j].Key })
	return snap
}

func sortedKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}

// DumpBytes encodes the keyspace as an RDB image, as sent on full resync.
func (e *Engine) DumpBytes() ([]byte, error) {
	return snapshot.Bytes(e.Dump())
}

// Save writes the keyspace to the snapshot file.
func (e *Engine) Save(ctx context.Context) (*snapshot.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := e.snapshot.Save(e.Dump())
	if err != nil {
		return nil, fmt.Errorf("storage: save snapshot: %w", err)
	}
	e.metrics.ObserveSnapshot(info.Duration.Seconds(), info.Size)
	e.logger.Info("snapshot saved",
		"path", info.Path,
		"keys", info.Keys,
		"size_bytes", info.Size,
		"elapsed", info.Duration)
	return info, nil
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Type reports which store holds key.
func (e *Engine) Type(key string) domain.KeyType {
	switch {
	case e.Strings.Contains(key):
		return domain.TypeString
	case e.Lists.Contains(key):
		return domain.TypeList
	case e.ZSets.Contains(key):
		return domain.TypeZSet
	case e.Streams.Contains(key):
		return domain.TypeStream
	}
	return domain.TypeNone
}

// CheckType returns ErrWrongType when key exists with a type other than want.
func (e *Engine) CheckType(key string, want domain.KeyType) error {
	if t := e.Type(key); t != domain.TypeNone && t != want {
		return domain.ErrWrongType
	}
	return nil
}

// Exists reports whether key holds any value.
func (e *Engine) Exists(key string) bool {
	return e.Type(key) != domain.TypeNone
}

// Delete removes key from whichever store holds it.
func (e *Engine) Delete(key string) bool {
	deleted := e.Strings.Delete(key)
	deleted = e.Lists.Delete(key) || deleted
	deleted = e.ZSets.Delete(key) || deleted
	deleted = e.Streams.Delete(key) || deleted
	return deleted
}

// Keys returns every live key matching the glob pattern, sorted.
func (e *Engine) Keys(pattern string) []string {
	var out []string
	add := func(keys []string) {
		for _, k := range keys {
			if MatchGlob(pattern, k) {
				out = append(out, k)
			}
		}
	}
	add(e.Strings.Keys())
	add(e.Lists.Keys())
	add(e.ZSets.Keys())
	add(e.Streams.Keys())
	sort.Strings(out)
	return out
}

// DBSize returns the number of keys, including expired strings not yet
// swept.
func (e *Engine) DBSize() int {
	return e.Strings.Count() + e.Lists.Count() + e.ZSets.Len() + e.Streams.Count()
}

// Flush drops every key.
func (e *Engine) Flush() {
	e.Strings.Clear()
	e.Lists.Clear()
	e.ZSets.Clear()
	e.Streams.Clear()
}

// SweepExpired removes expired strings and returns how many were removed.
func (e *Engine) SweepExpired() int {
	n := e.Strings.SweepExpired(e.now())
	e.metrics.AddKeysExpired(n)
	return n
}

func (e *Engine) updateKeyMetrics() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetKeys(string(domain.TypeString), e.Strings.Count())
	e.metrics.SetKeys(string(domain.TypeList), e.Lists.Count())
	e.metrics.SetKeys(string(domain.TypeZSet), e.ZSets.Len())
	e.metrics.SetKeys(string(domain.TypeStream), e.Streams.Count())
}

// backgroundLoop runs the periodic expiry sweep.
func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	lastGauge := time.Now()
	for {
		select {
		case now := <-ticker.C:
			if n := e.SweepExpired(); n > 0 {
				e.logger.Debug("expired keys swept", "count", n)
			}
			if now.Sub(lastGauge) >= time.Second {
				lastGauge = now
				e.updateKeyMetrics()
			}

		case <-e.stopCh:
			return
		}
	}
}

// Close stops the background sweeper.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.logger.Info("shutting down storage engine")
		close(e.stopCh)
		<-e.doneCh
		e.logger.Info("storage engine shutdown complete")
	})
	return nil
}
