package redisserver

import (
	"context"
	"errors"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/pkg/resp"
)

var errNegativeCount = errors.New("value is out of range, must be positive")

func stringArgs(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

// LPUSH key value [value ...]
func (h *CommandHandler) handleLPush(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeList); err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.Lists.PushLeft(key, stringArgs(args[2:])...)))
}

// RPUSH key value [value ...]
func (h *CommandHandler) handleRPush(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeList); err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.Lists.PushRight(key, stringArgs(args[2:])...)))
}

// LPOP key [count]
func (h *CommandHandler) handleLPop(_ context.Context, c *Conn, args [][]byte) error {
	return h.pop(c, args, h.engine.Lists.PopLeft, h.engine.Lists.PopLeftN)
}

// RPOP key [count]
func (h *CommandHandler) handleRPop(_ context.Context, c *Conn, args [][]byte) error {
	return h.pop(c, args, h.engine.Lists.PopRight, h.engine.Lists.PopRightN)
}

func (h *CommandHandler) pop(c *Conn, args [][]byte, popFn func(string) (string, bool), popN func(string, int) ([]string, bool)) error {
	if len(args) > 3 {
		return domain.ErrSyntax
	}
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeList); err != nil {
		return err
	}

	if len(args) == 2 {
		v, ok := popFn(key)
		if !ok {
			return resp.WriteNullBulk(c.bw)
		}
		return resp.WriteBulkString(c.bw, v)
	}

	count, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	if count < 0 {
		return errNegativeCount
	}
	out, ok := popN(key, count)
	if !ok {
		return resp.WriteNullArray(c.bw)
	}
	return writeStrings(c, out)
}

// LRANGE key start stop
func (h *CommandHandler) handleLRange(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	start, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	stop, err := parseIndex(args[3])
	if err != nil {
		return err
	}
	if err := h.engine.CheckType(key, domain.TypeList); err != nil {
		return err
	}
	return writeStrings(c, h.engine.Lists.Range(key, start, stop))
}

// LLEN key
func (h *CommandHandler) handleLLen(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	if err := h.engine.CheckType(key, domain.TypeList); err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.Lists.Len(key)))
}

// LREM key count value
func (h *CommandHandler) handleLRem(_ context.Context, c *Conn, args [][]byte) error {
	key := string(args[1])
	count, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	if err := h.engine.CheckType(key, domain.TypeList); err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.Lists.Remove(key, count, string(args[3]))))
}
