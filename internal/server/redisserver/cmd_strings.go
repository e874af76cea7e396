package redisserver

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/pkg/resp"
)

var errInvalidExpire = errors.New("invalid expire time in 'set' command")

// SET key value [EX seconds | PX milliseconds | EXAT unix-seconds | PXAT unix-milliseconds]
//
// SET replaces a key of any type. Relative expiries are propagated as PXAT
// so replicas expire the key at the same instant.
func (h *CommandHandler) handleSet(_ context.Context, c *Conn, args [][]byte) error {
	key, value := string(args[1]), string(args[2])

	var deadline time.Time
	for i := 3; i < len(args); i++ {
		opt := strings.ToUpper(string(args[i]))
		switch opt {
		case "EX", "PX", "EXAT", "PXAT":
		default:
			return domain.ErrSyntax
		}
		if !deadline.IsZero() || i+1 >= len(args) {
			return domain.ErrSyntax
		}
		n, err := parseInt(args[i+1])
		if err != nil {
			return err
		}
		if n <= 0 {
			return errInvalidExpire
		}
		i++

		switch opt {
		case "EX":
			if n > math.MaxInt64/int64(time.Second) {
				return errInvalidExpire
			}
			deadline = h.engine.Now().Add(time.Duration(n) * time.Second)
		case "PX":
			if n > math.MaxInt64/int64(time.Millisecond) {
				return errInvalidExpire
			}
			deadline = h.engine.Now().Add(time.Duration(n) * time.Millisecond)
		case "EXAT":
			if n > math.MaxInt64/1000 {
				return errInvalidExpire
			}
			deadline = time.UnixMilli(n * 1000)
		case "PXAT":
			deadline = time.UnixMilli(n)
		}
	}

	if t := h.engine.Type(key); t != domain.TypeNone && t != domain.TypeString {
		h.engine.Delete(key)
	}
	h.engine.Strings.SetWithDeadline(key, value, deadline)

	if !deadline.IsZero() {
		c.rewrite("SET", key, value, "PXAT", formatInt(deadline.UnixMilli()))
	}
	return writeOK(c)
}

// GET key
func (h *CommandHandler) handleGet(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeString); err != nil {
		return err
	}
	v, ok := h.engine.Strings.Get(key)
	if !ok {
		return resp.WriteNullBulk(c.bw)
	}
	return resp.WriteBulkString(c.bw, v)
}

// INCR key
func (h *CommandHandler) handleIncr(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeString); err != nil {
		return err
	}
	n, err := h.engine.Strings.Incr(key)
	if err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, n)
}

// INCRBY key factor multiplies the stored integer by factor. An absent key
// replies 0 and stays absent.
func (h *CommandHandler) handleIncrBy(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	factor, err := parseInt(args[2])
	if err != nil {
		return err
	}
	if err := h.engine.CheckType(key, domain.TypeString); err != nil {
		return err
	}
	n, err := h.engine.Strings.IncrBy(key, factor)
	if err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, n)
}
