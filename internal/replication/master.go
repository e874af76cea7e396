package replication

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
	"github.com/yndnr/memkv-go/pkg/resp"
)

// getAck is the probe sent by WAIT. Replicas answer with the offset they
// had reached before it, so the master allows for its length when
// comparing.
var getAck = resp.EncodeStrings("REPLCONF", "GETACK", "*")

// GetAckLen is the encoded length of the GETACK probe.
var GetAckLen = int64(len(getAck))

// DefaultWaitPoll is how often WAIT re-counts in-sync replicas.
const DefaultWaitPoll = 10 * time.Millisecond

// Peer is the connection to one replica.
type Peer interface {
	// Send writes b to the replica. It must be safe for concurrent use.
	Send(b []byte) error
	RemoteAddr() string
}

type replica struct {
	id            string
	peer          Peer
	listeningPort string
	sent          int64
	acked         int64
	inSync        bool
	attachedAt    time.Time
}

// ReplicaInfo describes an attached replica.
type ReplicaInfo struct {
	ID            string
	Addr          string
	ListeningPort string
	Sent          int64
	Acked         int64
	InSync        bool
	AttachedAt    time.Time
}

// Master fans write commands out to attached replicas.
type Master struct {
	mu       sync.Mutex
	replicas map[string]*replica
	replID   string
	offset   int64

	waitPoll time.Duration
	logger   *slog.Logger
	metrics  *metric.Registry
}

// MasterOption configures a Master.
type MasterOption func(*Master)

// WithMasterLogger sets the logger.
func WithMasterLogger(l *slog.Logger) MasterOption {
	return func(m *Master) { m.logger = l }
}

// WithMasterMetrics sets the metrics registry; nil disables metrics.
func WithMasterMetrics(r *metric.Registry) MasterOption {
	return func(m *Master) { m.metrics = r }
}

// WithWaitPoll overrides the WAIT polling period.
func WithWaitPoll(d time.Duration) MasterOption {
	return func(m *Master) { m.waitPoll = d }
}

// NewMaster creates a master with a fresh replication id.
func NewMaster(opts ...MasterOption) *Master {
	m := &Master{
		replicas: make(map[string]*replica),
		replID:   domain.NewReplicationID(),
		waitPoll: DefaultWaitPoll,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReplID returns the replication id.
func (m *Master) ReplID() string {
	return m.replID
}

// Offset returns the number of bytes propagated so far.
func (m *Master) Offset() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// Register attaches a replica after PSYNC and returns its id. The replica
// starts in sync: it is about to receive a snapshot of the current state.
func (m *Master) Register(peer Peer, listeningPort string) string {
	r := &replica{
		id:            domain.NewID(domain.ReplicaIDPrefix),
		peer:          peer,
		listeningPort: listeningPort,
		inSync:        true,
		attachedAt:    time.Now(),
	}

	m.mu.Lock()
	m.replicas[r.id] = r
	n := len(m.replicas)
	m.mu.Unlock()

	m.metrics.SetReplicas(n)
	m.logger.Info("replica attached",
		"replica_id", r.id,
		"addr", peer.RemoteAddr(),
		"listening_port", listeningPort)
	return r.id
}

// Unregister detaches a replica.
func (m *Master) Unregister(id string) {
	m.mu.Lock()
	_, ok := m.replicas[id]
	delete(m.replicas, id)
	n := len(m.replicas)
	m.mu.Unlock()

	if ok {
		m.metrics.SetReplicas(n)
		m.logger.Info("replica detached", "replica_id", id)
	}
}

// Count returns the number of attached replicas.
func (m *Master) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// Propagate forwards a write command to every replica.
func (m *Master) Propagate(args [][]byte) {
	m.broadcast(resp.EncodeCommand(args...), true)
}

// broadcast sends payload to every replica. The lock is held across sends
// so concurrent writers reach every replica in the same order. A replica
// whose send fails is dropped.
func (m *Master) broadcast(payload []byte, countOffset bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if countOffset {
		m.offset += int64(len(payload))
		m.metrics.SetReplicationOffset(m.offset)
	}
	if len(m.replicas) == 0 {
		return
	}

	var failed []string
	for id, r := range m.replicas {
		if err := r.peer.Send(payload); err != nil {
			m.logger.Warn("replica send failed, dropping replica",
				"replica_id", id,
				"addr", r.peer.RemoteAddr(),
				"error", err)
			failed = append(failed, id)
			continue
		}
		r.sent += int64(len(payload))
		r.inSync = false
	}
	for _, id := range failed {
		delete(m.replicas, id)
	}
	if len(failed) > 0 {
		m.metrics.SetReplicas(len(m.replicas))
	}
}

// Ack records an acknowledged offset. The replica is in sync when it has
// processed everything sent before the most recent GETACK.
func (m *Master) Ack(id string, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[id]
	if !ok {
		return
	}
	r.acked = offset
	if r.sent-GetAckLen <= offset {
		r.inSync = true
	}
}

// InSync returns the number of replicas known to be caught up.
func (m *Master) InSync() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inSyncLocked()
}

func (m *Master) inSyncLocked() int {
	n := 0
	for _, r := range m.replicas {
		if r.inSync {
			n++
		}
	}
	return n
}

// Wait blocks until at least n replicas are in sync, the timeout elapses or
// ctx is done, and returns the number in sync at that point. A zero timeout
// waits until ctx is done.
func (m *Master) Wait(ctx context.Context, n int, timeout time.Duration) int {
	if got := m.InSync(); got >= n {
		return got
	}

	m.broadcast(getAck, false)

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(m.waitPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if got := m.InSync(); got >= n {
				return got
			}
		case <-deadline:
			return m.InSync()
		case <-ctx.Done():
			return m.InSync()
		}
	}
}

// Replicas lists attached replicas ordered by attach time.
func (m *Master) Replicas() []ReplicaInfo {
	m.mu.Lock()
	out := make([]ReplicaInfo, 0, len(m.replicas))
	for _, r := range m.replicas {
		out = append(out, ReplicaInfo{
			ID:            r.id,
			Addr:          r.peer.RemoteAddr(),
			ListeningPort: r.listeningPort,
			Sent:          r.sent,
			Acked:         r.acked,
			InSync:        r.inSync,
			AttachedAt:    r.attachedAt,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AttachedAt.Before(out[j].AttachedAt) })
	return out
}
