package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/memkv-go/internal/storage/rdb"
)

const (
	DefaultDir        = "."
	DefaultDBFilename = "dump.rdb"
)

var (
	ErrNotFound = errors.New("snapshot: not found")
)

// Config configures the snapshot manager.
type Config struct {
	Dir        string
	DBFilename string
}

// DefaultConfig returns a Config for dir with the default file name.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		DBFilename: DefaultDBFilename,
	}
}

// Manager owns the snapshot file at <dir>/<dbfilename>.
type Manager struct {
	cfg Config
	mu  sync.Mutex // serialises writers
}

// NewManager creates a Manager, filling in defaults for empty fields.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.DBFilename == "" {
		cfg.DBFilename = DefaultDBFilename
	}
	if filepath.Base(cfg.DBFilename) != cfg.DBFilename {
		return nil, fmt.Errorf("snapshot: dbfilename must not contain a path: %q", cfg.DBFilename)
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	return &Manager{cfg: cfg}, nil
}

// Info describes a written snapshot.
type Info struct {
	Path      string
	Size      int64
	Keys      int
	CreatedAt time.Time
	Duration  time.Duration
}

// Path returns the snapshot file path.
func (m *Manager) Path() string {
	return filepath.Join(m.cfg.Dir, m.cfg.DBFilename)
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.cfg.Dir
}

// DBFilename returns the snapshot file name.
func (m *Manager) DBFilename() string {
	return m.cfg.DBFilename
}

// Save encodes snap and atomically replaces the snapshot file.
func (m *Manager) Save(snap *rdb.Snapshot) (*Info, error) {
	start := time.Now()
	size, err := m.replace(func(w io.Writer) error {
		return rdb.Encode(w, snap)
	})
	if err != nil {
		return nil, err
	}
	return &Info{
		Path:      m.Path(),
		Size:      size,
		Keys:      snap.Len(),
		CreatedAt: start,
		Duration:  time.Since(start),
	}, nil
}

// WriteRaw atomically replaces the snapshot file with data as received,
// e.g. a full-resync payload from a master.
func (m *Manager) WriteRaw(data []byte) error {
	_, err := m.replace(func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	return err
}

// replace writes a temp file next to the target, syncs it and renames it
// into place.
func (m *Manager) replace(write func(w io.Writer) error) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.CreateTemp(m.cfg.Dir, m.cfg.DBFilename+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	if err := write(file); err != nil {
		file.Close()
		return 0, fmt.Errorf("snapshot: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return 0, fmt.Errorf("snapshot: sync: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("snapshot: close: %w", err)
	}

	if err := os.Rename(tempPath, m.Path()); err != nil {
		return 0, fmt.Errorf("snapshot: rename: %w", err)
	}
	return stat.Size(), nil
}

// Load decodes the snapshot file. A missing file yields ErrNotFound. When
// the file is damaged the records before the damage are returned along
// with the error.
func (m *Manager) Load(now time.Time) (*rdb.Snapshot, error) {
	f, err := os.Open(m.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	snap, err := rdb.Decode(f, now)
	if err != nil {
		return snap, fmt.Errorf("snapshot: decode %s: %w", m.Path(), err)
	}
	return snap, nil
}

// Bytes encodes snap in memory, as sent to a replica during full resync.
func Bytes(snap *rdb.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := rdb.Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
