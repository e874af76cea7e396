package redisserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/storage/stream"
	"github.com/yndnr/memkv-go/pkg/resp"
)

var (
	errUnbalancedXRead = errors.New("Unbalanced 'xread' list of streams: for each stream key an ID or '$' must be specified.")
	errNegativeTimeout = errors.New("timeout is negative")
	errNegativeXCount  = errors.New("COUNT must be > 0")
)

// XADD key id field value [field value ...]
//
// Generated ids are propagated explicitly so replicas store the same id.
func (h *CommandHandler) handleXAdd(_ context.Context, c *Conn, args [][]byte) error {
	if (len(args)-3)%2 != 0 {
		return wrongArity("XADD")
	}
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeStream); err != nil {
		return err
	}

	fields := make([]stream.Field, 0, (len(args)-3)/2)
	for i := 3; i < len(args); i += 2 {
		fields = append(fields, stream.Field{Name: string(args[i]), Value: string(args[i+1])})
	}
	id, err := h.engine.Streams.Append(key, string(args[2]), fields)
	if err != nil {
		return err
	}

	rewritten := append([]string{"XADD", key, id.String()}, stringArgs(args[3:])...)
	c.rewrite(rewritten...)
	return resp.WriteBulkString(c.bw, id.String())
}

// XRANGE key start end [COUNT count]
func (h *CommandHandler) handleXRange(_ context.Context, c *Conn, args [][]byte) error {
	count := -1
	switch {
	case len(args) == 4:
	case len(args) == 6 && strings.EqualFold(string(args[4]), "COUNT"):
		n, err := parseIndex(args[5])
		if err != nil {
			return err
		}
		count = max(n, 0)
	default:
		return domain.ErrSyntax
	}

	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeStream); err != nil {
		return err
	}
	entries, err := h.engine.Streams.Range(key, string(args[2]), string(args[3]))
	if err != nil {
		return err
	}
	if count >= 0 && count < len(entries) {
		entries = entries[:count]
	}
	return writeEntries(c, entries)
}

// XREAD [COUNT count] [BLOCK milliseconds] STREAMS key [key ...] id [id ...]
//
// BLOCK 0 waits forever. Inside MULTI the read never blocks.
func (h *CommandHandler) handleXRead(ctx context.Context, c *Conn, args [][]byte) error {
	var (
		count   = -1
		block   bool
		timeout time.Duration
		rest    [][]byte
	)

parse:
	for i := 1; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "COUNT":
			if i+1 >= len(args) {
				return domain.ErrSyntax
			}
			n, err := parseIndex(args[i+1])
			if err != nil {
				return err
			}
			if n <= 0 {
				return errNegativeXCount
			}
			count = n
			i++
		case "BLOCK":
			if i+1 >= len(args) {
				return domain.ErrSyntax
			}
			ms, err := parseInt(args[i+1])
			if err != nil {
				return err
			}
			if ms < 0 {
				return errNegativeTimeout
			}
			block, timeout = true, time.Duration(ms)*time.Millisecond
			i++
		case "STREAMS":
			rest = args[i+1:]
			break parse
		default:
			return domain.ErrSyntax
		}
	}
	if len(rest) == 0 || len(rest)%2 != 0 {
		return errUnbalancedXRead
	}

	n := len(rest) / 2
	reqs := make([]stream.ReadRequest, n)
	for i := 0; i < n; i++ {
		key := string(rest[i])
		if err := h.engine.CheckType(key, domain.TypeStream); err != nil {
			return err
		}
		reqs[i] = stream.ReadRequest{Key: key, After: string(rest[n+i])}
	}

	if c.inExec {
		block = false
	}
	if block {
		var stop func()
		ctx, stop = c.blockingContext(ctx)
		defer stop()
	}

	results, err := h.engine.Streams.ReadMulti(ctx, reqs, block, timeout)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return resp.WriteNullArray(c.bw)
	}

	_ = resp.WriteArrayHeader(c.bw, len(results))
	for _, r := range results {
		entries := r.Entries
		if count > 0 && count < len(entries) {
			entries = entries[:count]
		}
		_ = resp.WriteArrayHeader(c.bw, 2)
		_ = resp.WriteBulkString(c.bw, r.Key)
		if err := writeEntries(c, entries); err != nil {
			return err
		}
	}
	return nil
}
