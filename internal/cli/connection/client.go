package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/memkv-go/pkg/resp"
)

// DefaultTimeout bounds dialing and each round trip.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned after Close.
var ErrClosed = errors.New("connection: closed")

// Options configure a Client.
type Options struct {
	Addr     string
	Password string
	Timeout  time.Duration
}

// Client is a single RESP connection. Calls are serialised.
type Client struct {
	opts Options

	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

// Dial connects to opts.Addr and authenticates when a password is set.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: opts.Timeout}
	conn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("connection: dial %s: %w", opts.Addr, err)
	}
	c := &Client{
		opts: opts,
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}

	if opts.Password != "" {
		v, err := c.Do(ctx, "AUTH", opts.Password)
		if err == nil {
			err = v.Err()
		}
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("connection: auth: %w", err)
		}
	}
	return c, nil
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.opts.Addr
}

// Do sends one command and reads its reply. An error reply is returned as
// a Value, not as an error; err reports transport failures only.
func (c *Client) Do(ctx context.Context, args ...string) (resp.Value, error) {
	return c.do(ctx, c.opts.Timeout, args)
}

// DoBlocking is Do without a read deadline, for BLOCK 0 style commands.
// Cancelling ctx closes the connection.
func (c *Client) DoBlocking(ctx context.Context, args ...string) (resp.Value, error) {
	return c.do(ctx, 0, args)
}

func (c *Client) do(ctx context.Context, timeout time.Duration, args []string) (resp.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return resp.Value{}, ErrClosed
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return resp.Value{}, err
	}
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	if _, err := c.bw.Write(resp.EncodeStrings(args...)); err != nil {
		return resp.Value{}, c.fail(ctx, err)
	}
	if err := c.bw.Flush(); err != nil {
		return resp.Value{}, c.fail(ctx, err)
	}
	v, err := resp.ReadValue(c.br)
	if err != nil {
		return resp.Value{}, c.fail(ctx, err)
	}
	return v, nil
}

// fail drops the broken connection so later calls report ErrClosed.
func (c *Client) fail(ctx context.Context, err error) error {
	c.conn.Close()
	c.conn = nil
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsBlocking reports whether a command may wait on the server without
// bound, so that it should be sent with DoBlocking.
func IsBlocking(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch strings.ToUpper(args[0]) {
	case "WAIT":
		return true
	case "XREAD":
		for _, a := range args[1:] {
			if strings.EqualFold(a, "BLOCK") {
				return true
			}
		}
	}
	return false
}
