package redisserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/replication"
	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
	"github.com/yndnr/memkv-go/pkg/cmap"
	"github.com/yndnr/memkv-go/pkg/resp"
)

type commandFlags uint8

const (
	// flagWrite commands change the keyspace and are propagated to replicas.
	flagWrite commandFlags = 1 << iota
	// flagNoAuth commands run before AUTH.
	flagNoAuth
	// flagTxControl commands are executed immediately inside MULTI.
	flagTxControl
)

type handlerFunc func(h *CommandHandler, ctx context.Context, c *Conn, args [][]byte) error

type command struct {
	name string
	// arity counts the command name. Negative means "at least -arity".
	arity int
	flags commandFlags
	fn    handlerFunc
}

func (cmd *command) arityOK(n int) bool {
	if cmd.arity >= 0 {
		return n == cmd.arity
	}
	return n >= -cmd.arity
}

func (cmd *command) isWrite() bool {
	return cmd.flags&flagWrite != 0
}

func newCommandTable() map[string]*command {
	table := []*command{
		// connection and server
		{"PING", -1, flagNoAuth, (*CommandHandler).handlePing},
		{"ECHO", 2, 0, (*CommandHandler).handleEcho},
		{"QUIT", 1, 0, (*CommandHandler).handleQuit},
		{"AUTH", -2, flagNoAuth, (*CommandHandler).handleAuth},
		{"INFO", -1, 0, (*CommandHandler).handleInfo},
		{"CONFIG", -2, 0, (*CommandHandler).handleConfig},
		{"COMMAND", -1, 0, (*CommandHandler).handleCommand},
		{"SAVE", 1, 0, (*CommandHandler).handleSave},
		{"DBSIZE", 1, 0, (*CommandHandler).handleDBSize},

		// keyspace
		{"KEYS", 2, 0, (*CommandHandler).handleKeys},
		{"TYPE", 2, 0, (*CommandHandler).handleType},
		{"EXISTS", -2, 0, (*CommandHandler).handleExists},
		{"DEL", -2, flagWrite, (*CommandHandler).handleDel},

		// strings
		{"SET", -3, flagWrite, (*CommandHandler).handleSet},
		{"GET", 2, 0, (*CommandHandler).handleGet},
		{"INCR", 2, flagWrite, (*CommandHandler).handleIncr},
		{"INCRBY", 3, flagWrite, (*CommandHandler).handleIncrBy},

		// lists
		{"LPUSH", -3, flagWrite, (*CommandHandler).handleLPush},
		{"RPUSH", -3, flagWrite, (*CommandHandler).handleRPush},
		{"LPOP", -2, flagWrite, (*CommandHandler).handleLPop},
		{"RPOP", -2, flagWrite, (*CommandHandler).handleRPop},
		{"LRANGE", 4, 0, (*CommandHandler).handleLRange},
		{"LLEN", 2, 0, (*CommandHandler).handleLLen},
		{"LREM", 4, flagWrite, (*CommandHandler).handleLRem},

		// sorted sets
		{"ZADD", -4, flagWrite, (*CommandHandler).handleZAdd},
		{"ZINCRBY", 4, flagWrite, (*CommandHandler).handleZIncrBy},
		{"ZREM", -3, flagWrite, (*CommandHandler).handleZRem},
		{"ZSCORE", 3, 0, (*CommandHandler).handleZScore},
		{"ZRANK", 3, 0, (*CommandHandler).handleZRank},
		{"ZREVRANK", 3, 0, (*CommandHandler).handleZRevRank},
		{"ZRANGE", -4, 0, (*CommandHandler).handleZRange},
		{"ZREVRANGE", -4, 0, (*CommandHandler).handleZRevRange},
		{"ZRANGEBYSCORE", -4, 0, (*CommandHandler).handleZRangeByScore},
		{"ZREVRANGEBYSCORE", -4, 0, (*CommandHandler).handleZRevRangeByScore},
		{"ZCARD", 2, 0, (*CommandHandler).handleZCard},
		{"ZCOUNT", 4, 0, (*CommandHandler).handleZCount},
		{"ZREMRANGEBYSCORE", 4, flagWrite, (*CommandHandler).handleZRemRangeByScore},
		{"ZREMRANGEBYRANK", 4, flagWrite, (*CommandHandler).handleZRemRangeByRank},

		// streams
		{"XADD", -5, flagWrite, (*CommandHandler).handleXAdd},
		{"XRANGE", -4, 0, (*CommandHandler).handleXRange},
		{"XREAD", -4, 0, (*CommandHandler).handleXRead},

		// transactions
		{"MULTI", 1, flagTxControl, (*CommandHandler).handleMulti},
		{"EXEC", 1, flagTxControl, (*CommandHandler).handleExec},
		{"DISCARD", 1, flagTxControl, (*CommandHandler).handleDiscard},

		// replication
		{"REPLCONF", -2, 0, (*CommandHandler).handleReplconf},
		{"PSYNC", 3, 0, (*CommandHandler).handlePsync},
		{"WAIT", 3, 0, (*CommandHandler).handleWait},
	}

	out := make(map[string]*command, len(table))
	for _, cmd := range table {
		out[cmd.name] = cmd
	}
	return out
}

func wrongArity(name string) error {
	return fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(name))
}

func unknownCommand(name string) error {
	return fmt.Errorf("unknown command '%s'", name)
}

// limiterSweepInterval is how often allow drops refilled buckets.
const limiterSweepInterval = time.Minute

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	buckets   *cmap.Map[*rate.Limiter]
	limit     rate.Limit
	burst     int
	lastSweep atomic.Int64
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	rl := &rateLimiter{
		buckets: cmap.New[*rate.Limiter](),
		limit:   rate.Limit(requestsPerSecond),
		burst:   requestsPerSecond,
	}
	rl.lastSweep.Store(time.Now().UnixNano())
	return rl
}

// allow checks if a request from the given IP should be allowed.
func (rl *rateLimiter) allow(ip string) bool {
	now := time.Now()
	last := rl.lastSweep.Load()
	if now.UnixNano()-last >= int64(limiterSweepInterval) && rl.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		rl.sweep(now)
	}
	l, _ := rl.buckets.GetOrCreate(ip, func() *rate.Limiter {
		return rate.NewLimiter(rl.limit, rl.burst)
	})
	return l.Allow()
}

// sweep removes buckets that have refilled to burst. Such a bucket behaves
// exactly like a new one, so the next request from that IP is unaffected.
func (rl *rateLimiter) sweep(now time.Time) int {
	full := float64(rl.burst)
	return rl.buckets.Sweep(func(_ string, l *rate.Limiter) bool {
		return l.TokensAt(now) >= full
	})
}

func clientIP(c *Conn) string {
	addr := c.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// CommandHandler executes commands against the engine.
type CommandHandler struct {
	cfg      *Config
	engine   *storage.Engine
	master   *replication.Master
	replica  atomic.Pointer[replication.Replica]
	logger   *slog.Logger
	metrics  *metric.Registry
	limiter  *rateLimiter
	commands map[string]*command
	started  time.Time

	// syncMu serializes each write with its propagation, and both with the
	// snapshot-and-attach step of PSYNC. Replicas then apply writes in the
	// order the master did and a new replica sees every write exactly once.
	syncMu sync.Mutex

	applyConn *Conn
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(cfg *Config, engine *storage.Engine, master *replication.Master, logger *slog.Logger, metrics *metric.Registry) *CommandHandler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if master == nil {
		master = replication.NewMaster(replication.WithMasterLogger(logger), replication.WithMasterMetrics(metrics))
	}

	var rl *rateLimiter
	if cfg.RateLimit > 0 {
		rl = newRateLimiter(cfg.RateLimit)
	}

	return &CommandHandler{
		cfg:       cfg,
		engine:    engine,
		master:    master,
		logger:    logger,
		metrics:   metrics,
		limiter:   rl,
		commands:  newCommandTable(),
		started:   time.Now(),
		applyConn: newDetachedConn(),
	}
}

// SetReplica marks this node as a replica of the master behind r. Client
// writes are rejected from then on.
func (h *CommandHandler) SetReplica(r *replication.Replica) {
	h.replica.Store(r)
}

func (h *CommandHandler) readOnly() bool {
	return h.replica.Load() != nil
}

// Handle runs one client command and writes its reply to c.
func (h *CommandHandler) Handle(ctx context.Context, c *Conn, args [][]byte) {
	name := resp.CommandName(args[0])
	cmd := h.commands[name]
	label := "unknown"
	if cmd != nil {
		label = cmd.name
	}

	// After PSYNC the peer only reports offsets; nothing is answered.
	if id, ok := c.isReplica(); ok {
		if name == "REPLCONF" {
			h.replicaAck(id, args)
		}
		return
	}

	if h.cfg.RequirePass != "" && !c.authenticated && (cmd == nil || cmd.flags&flagNoAuth == 0) {
		h.writeError(c, label, domain.ErrNoAuth)
		return
	}

	if h.limiter != nil && !h.limiter.allow(clientIP(c)) {
		h.metrics.IncRateLimited()
		h.writeError(c, label, domain.ErrRateLimited)
		return
	}

	if c.tx != nil && (cmd == nil || cmd.flags&flagTxControl == 0) {
		h.enqueue(c, name, cmd, args)
		return
	}

	if cmd == nil {
		h.writeError(c, label, unknownCommand(name))
		return
	}
	if !cmd.arityOK(len(args)) {
		h.writeError(c, cmd.name, wrongArity(cmd.name))
		return
	}
	_ = h.execute(ctx, c, cmd, args, true)
}

// Apply executes a command streamed from this node's master. It implements
// replication.Applier: the reply is discarded, the READONLY check is
// skipped and the write is forwarded to this node's own replicas.
func (h *CommandHandler) Apply(ctx context.Context, args [][]byte) error {
	name := resp.CommandName(args[0])
	cmd, ok := h.commands[name]
	if !ok {
		return unknownCommand(name)
	}
	if !cmd.arityOK(len(args)) {
		return wrongArity(cmd.name)
	}
	return h.execute(ctx, h.applyConn, cmd, args, false)
}

// execute runs cmd, writes an error reply when it fails and propagates
// successful writes.
func (h *CommandHandler) execute(ctx context.Context, c *Conn, cmd *command, args [][]byte, fromClient bool) error {
	start := time.Now()

	var err error
	if fromClient && cmd.isWrite() && h.readOnly() {
		err = domain.ErrReadOnly
	} else if cmd.isWrite() {
		err = h.executeWrite(ctx, c, cmd, args)
	} else {
		err = cmd.fn(h, ctx, c, args)
	}

	status := "ok"
	if err != nil {
		status = "error"
		_ = resp.WriteError(c.bw, domain.ReplyFor(err))
	}
	h.metrics.RecordCommand(cmd.name, status, time.Since(start).Seconds())
	return err
}

func (h *CommandHandler) executeWrite(ctx context.Context, c *Conn, cmd *command, args [][]byte) error {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	c.rewritten = nil
	if err := cmd.fn(h, ctx, c, args); err != nil {
		return err
	}
	propagated := args
	if c.rewritten != nil {
		propagated = c.rewritten
		c.rewritten = nil
	}
	h.master.Propagate(propagated)
	return nil
}

// rewrite replaces the command propagated to replicas, for writes whose
// effect depends on the clock (relative TTLs, generated stream ids).
func (c *Conn) rewrite(args ...string) {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	c.rewritten = out
}

func (h *CommandHandler) writeError(c *Conn, name string, err error) {
	_ = resp.WriteError(c.bw, domain.ReplyFor(err))
	h.metrics.RecordCommand(name, "error", 0)
}

// disconnect releases per-connection state when the client goes away.
func (h *CommandHandler) disconnect(c *Conn) {
	if id, ok := c.isReplica(); ok {
		h.master.Unregister(id)
	}
}
