package replication

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/memkv-go/internal/telemetry/metric"
	"github.com/yndnr/memkv-go/pkg/resp"
)

// State is the lifecycle stage of a replica link.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateSyncing
	StateStreaming
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSyncing:
		return "sync"
	case StateStreaming:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrHandshake wraps any unexpected reply during the handshake.
	ErrHandshake = errors.New("replication: handshake failed")
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("replication: closed")
)

// Loader installs the snapshot received on full resync.
type Loader interface {
	LoadRDB(data []byte) (int, error)
}

// Applier executes a command streamed by the master. It must not reply to
// the master.
type Applier interface {
	Apply(ctx context.Context, args [][]byte) error
}

// ReplicaConfig configures the link to a master.
type ReplicaConfig struct {
	// MasterAddr is "host:port".
	MasterAddr string

	// MasterAuth is sent with AUTH when not empty.
	MasterAuth string

	// ListeningPort is announced with REPLCONF listening-port.
	ListeningPort int

	// DialTimeout bounds the TCP connect. The handshake itself is not bounded.
	DialTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// ParseReplicaOf turns "host port" (the replicaof setting) into "host:port".
func ParseReplicaOf(s string) (string, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", fmt.Errorf("replication: replicaof must be \"<host> <port>\", got %q", s)
	}
	if _, err := strconv.ParseUint(fields[1], 10, 16); err != nil {
		return "", fmt.Errorf("replication: invalid master port %q", fields[1])
	}
	return net.JoinHostPort(fields[0], fields[1]), nil
}

// Replica is the link from this node to its master.
type Replica struct {
	cfg     ReplicaConfig
	loader  Loader
	applier Applier
	logger  *slog.Logger

	state        atomic.Int32
	offset       atomic.Int64
	masterReplID atomic.Value // string

	mu   sync.Mutex
	conn net.Conn
}

// NewReplica creates an idle replica link.
func NewReplica(cfg ReplicaConfig, loader Loader, applier Applier) *Replica {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	r := &Replica{
		cfg:     cfg,
		loader:  loader,
		applier: applier,
		logger:  cfg.Logger.With("master", cfg.MasterAddr),
	}
	r.masterReplID.Store("")
	return r
}

// State returns the current link state.
func (r *Replica) State() State {
	return State(r.state.Load())
}

// Offset returns the number of streamed bytes processed.
func (r *Replica) Offset() int64 {
	return r.offset.Load()
}

// MasterReplID returns the replication id announced by the master.
func (r *Replica) MasterReplID() string {
	return r.masterReplID.Load().(string)
}

// MasterAddr returns the configured master address.
func (r *Replica) MasterAddr() string {
	return r.cfg.MasterAddr
}

func (r *Replica) setState(s State) {
	r.state.Store(int32(s))
}

// Run connects, synchronises and applies the command stream until the link
// breaks, ctx is cancelled or Close is called. It does not reconnect.
func (r *Replica) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return fmt.Errorf("replication: link already used (%s)", r.State())
	}
	dialer := net.Dialer{Timeout: r.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.cfg.MasterAddr)
	if err != nil {
		r.setState(StateFailed)
		return fmt.Errorf("replication: dial master: %w", err)
	}

	r.mu.Lock()
	if r.State() == StateClosed {
		r.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	r.conn = conn
	r.mu.Unlock()

	// Unblock reads when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	err = r.serve(ctx, conn)
	if r.State() == StateClosed {
		return ErrClosed
	}
	if ctx.Err() != nil {
		r.setState(StateClosed)
		return ctx.Err()
	}
	r.setState(StateFailed)
	return err
}

func (r *Replica) serve(ctx context.Context, conn net.Conn) error {
	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)

	if err := r.handshake(br, bw); err != nil {
		return err
	}

	r.setState(StateSyncing)
	rdbData, err := resp.ReadBulkPayload(br, true)
	if err != nil {
		return fmt.Errorf("replication: read snapshot: %w", err)
	}
	n, err := r.loader.LoadRDB(rdbData)
	if err != nil {
		// Keep whatever was loaded and carry on streaming.
		r.logger.Error("snapshot from master loaded partially", "keys", n, "error", err)
	} else {
		r.logger.Info("full resync complete", "keys", n, "rdb_bytes", len(rdbData))
	}

	r.setState(StateStreaming)
	return r.stream(ctx, br, bw)
}

// handshake runs the command sequence up to and including FULLRESYNC.
func (r *Replica) handshake(br *bufio.Reader, bw *bufio.Writer) error {
	steps := [][]string{{"PING"}}
	if r.cfg.MasterAuth != "" {
		steps = append(steps, []string{"AUTH", r.cfg.MasterAuth})
	}
	steps = append(steps,
		[]string{"REPLCONF", "listening-port", strconv.Itoa(r.cfg.ListeningPort)},
		[]string{"REPLCONF", "capa", "psync2"},
	)

	for _, step := range steps {
		reply, err := r.roundTrip(br, bw, step...)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrHandshake, step[0], err)
		}
		r.logger.Debug("handshake step", "command", step[0], "reply", reply)
	}

	reply, err := r.roundTrip(br, bw, "PSYNC", "?", "-1")
	if err != nil {
		return fmt.Errorf("%w: PSYNC: %w", ErrHandshake, err)
	}
	replID, offset, err := parseFullResync(reply)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	r.masterReplID.Store(replID)
	r.logger.Info("master accepted full resync", "replid", replID, "offset", offset)
	return nil
}

func (r *Replica) roundTrip(br *bufio.Reader, bw *bufio.Writer, args ...string) (string, error) {
	if _, err := bw.Write(resp.EncodeStrings(args...)); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", err
	}
	return resp.ReadStatus(br)
}

// parseFullResync parses "FULLRESYNC <replid> <offset>".
func parseFullResync(reply string) (string, int64, error) {
	fields := strings.Fields(reply)
	if len(fields) != 3 || !strings.EqualFold(fields[0], "FULLRESYNC") {
		return "", 0, fmt.Errorf("unexpected PSYNC reply %q", reply)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid FULLRESYNC offset %q", fields[2])
	}
	return fields[1], offset, nil
}

// stream applies commands from the master. Only REPLCONF GETACK is
// answered; the offset reported excludes the GETACK itself.
func (r *Replica) stream(ctx context.Context, br *bufio.Reader, bw *bufio.Writer) error {
	for {
		args, err := resp.ReadCommand(br)
		if err != nil {
			return fmt.Errorf("replication: read command: %w", err)
		}
		if len(args) == 0 {
			continue
		}
		size := int64(resp.EncodedLen(args))

		if isGetAck(args) {
			ack := resp.EncodeStrings("REPLCONF", "ACK", strconv.FormatInt(r.offset.Load(), 10))
			if _, err := bw.Write(ack); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
		} else if resp.CommandName(args[0]) != "PING" {
			if err := r.applier.Apply(ctx, args); err != nil {
				r.logger.Warn("apply replicated command failed",
					"command", resp.CommandName(args[0]),
					"error", err)
			}
		}

		r.cfg.Metrics.SetReplicationOffset(r.offset.Add(size))
	}
}

func isGetAck(args [][]byte) bool {
	return len(args) >= 2 &&
		resp.CommandName(args[0]) == "REPLCONF" &&
		strings.EqualFold(string(args[1]), "GETACK")
}

// Close stops Run.
func (r *Replica) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(StateClosed)
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
