package redisserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/replication"
	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/telemetry/logger"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
	"github.com/yndnr/memkv-go/pkg/cmap"
	"github.com/yndnr/memkv-go/pkg/resp"
)

// Config holds the RESP server configuration.
type Config struct {
	// Address is the listen address ("host:port").
	Address string
	// ReadTimeout bounds reading the rest of a command once its first byte
	// arrived. Helps against slowloris clients.
	ReadTimeout time.Duration
	// WriteTimeout bounds every flush to the client and every send to a
	// replica.
	WriteTimeout time.Duration
	// IdleTimeout closes connections that send nothing for this long.
	// Zero keeps idle connections open, which replicas rely on.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per client IP.
	// Zero disables rate limiting.
	RateLimit int
	// RequirePass enables AUTH when not empty.
	RequirePass string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		RateLimit:    0,
	}
}

// Server is the RESP listener.
type Server struct {
	cfg     *Config
	handler *CommandHandler
	logger  *slog.Logger
	metrics *metric.Registry

	mu      sync.Mutex
	ln      net.Listener
	conns   *cmap.Map[*Conn]
	running atomic.Bool
	wg      sync.WaitGroup
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithMetrics records command and connection metrics.
func WithMetrics(r *metric.Registry) Option {
	return func(s *Server) { s.metrics = r }
}

// New creates a server over engine. master tracks the replicas attached to
// this node.
func New(cfg *Config, engine *storage.Engine, master *replication.Master, log *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: log,
		conns:  cmap.New[*Conn](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = NewCommandHandler(cfg, engine, master, log, s.metrics)
	return s
}

// Handler returns the command handler. It doubles as the replication
// applier of a replica node.
func (s *Server) Handler() *CommandHandler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
// The listener is bound before Start returns.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.running.Store(true)

	s.logger.Info("resp server listening", "address", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("resp server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, closes every client connection and waits for
// their goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	s.mu.Lock()
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	s.mu.Unlock()

	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, newConn(c, s.cfg.WriteTimeout))
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	s.conns.Set(c.id, c)
	s.metrics.IncConnections()
	defer func() {
		s.handler.disconnect(c)
		s.conns.Delete(c.id)
		s.metrics.DecConnections()
		_ = c.Close()
	}()

	ctx = logger.WithConnID(logger.WithLogger(ctx, s.logger), c.id)
	log := logger.L(ctx)
	log.Debug("client connected", "remote", c.RemoteAddr())

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}

	for {
		// First byte: allow the idle timeout between commands. Replicas
		// only speak when asked for an ACK and are never timed out.
		var idle time.Time
		if _, replica := c.isReplica(); s.cfg.IdleTimeout > 0 && !replica {
			idle = time.Now().Add(s.cfg.IdleTimeout)
		}
		if err := c.netConn.SetReadDeadline(idle); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			logReadError(log, err)
			return
		}

		// After the first byte: tighten to the per-command read timeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := resp.ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, resp.ErrLimitExceeded) {
				log.Warn("protocol limit exceeded", "remote", c.RemoteAddr(), "error", err)
				c.replyAndFlush("ERR protocol limit exceeded")
				return
			}
			if errors.Is(err, resp.ErrProtocol) {
				c.replyAndFlush("ERR Protocol error: " + err.Error())
				return
			}
			logReadError(log, err)
			return
		}
		if len(args) == 0 {
			continue
		}

		s.handler.Handle(ctx, c, args)

		if err := c.flush(); err != nil {
			log.Debug("write failed", "error", err)
			return
		}
		if c.closed.Load() {
			return
		}
	}
}

func logReadError(log *slog.Logger, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Debug("client disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Debug("connection timed out")
	default:
		log.Debug("connection read error", "error", err)
	}
}

// Conn is one client connection.
type Conn struct {
	id           string
	netConn      net.Conn
	br           *bufio.Reader
	bw           *bufio.Writer
	writeTimeout time.Duration

	// writeMu serialises flushes with replication sends once the
	// connection is a replica.
	writeMu sync.Mutex
	closed  atomic.Bool

	// Owned by the serving goroutine.
	authenticated bool
	tx            *transaction
	inExec        bool
	listeningPort string
	rewritten     [][]byte

	// Set once the connection completed PSYNC.
	replicaID atomic.Pointer[string]
}

func newConn(c net.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	return &Conn{
		id:           domain.NewID(domain.ConnIDPrefix),
		netConn:      c,
		br:           bufio.NewReader(c),
		bw:           bufio.NewWriter(c),
		writeTimeout: writeTimeout,
	}
}

// newDetachedConn returns a connection whose replies are discarded. It
// executes commands streamed from a master.
func newDetachedConn() *Conn {
	return &Conn{
		id:            domain.NewID(domain.ConnIDPrefix),
		bw:            bufio.NewWriter(io.Discard),
		authenticated: true,
	}
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) || c.netConn == nil {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the client address as a string.
func (c *Conn) RemoteAddr() string {
	if c.netConn == nil {
		return "master"
	}
	return c.netConn.RemoteAddr().String()
}

// Send writes a replication payload. It implements replication.Peer.
func (c *Conn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return net.ErrClosed
	}
	if _, err := c.bw.Write(payload); err != nil {
		return err
	}
	return c.flushLocked()
}

func (c *Conn) flush() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.flushLocked()
}

func (c *Conn) flushLocked() error {
	if c.bw.Buffered() == 0 {
		return nil
	}
	if c.netConn != nil {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

func (c *Conn) replyAndFlush(msg string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = resp.WriteError(c.bw, msg)
	_ = c.flushLocked()
}

// isReplica reports whether the connection completed PSYNC.
func (c *Conn) isReplica() (string, bool) {
	id := c.replicaID.Load()
	if id == nil {
		return "", false
	}
	return *id, true
}

// blockingContext returns a context that is cancelled when the client
// hangs up while a command blocks. stop must be called before the
// connection reads again.
func (c *Conn) blockingContext(parent context.Context) (context.Context, func()) {
	if c.netConn == nil {
		return parent, func() {}
	}
	_ = c.netConn.SetReadDeadline(time.Time{})
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := c.br.Peek(1); err != nil {
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				cancel()
			}
		}
	}()
	stop := func() {
		_ = c.netConn.SetReadDeadline(time.Now())
		<-done
		cancel()
	}
	return ctx, stop
}
