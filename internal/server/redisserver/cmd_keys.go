package redisserver

import (
	"context"

	"github.com/yndnr/memkv-go/pkg/resp"
)

// KEYS pattern
func (h *CommandHandler) handleKeys(_ context.Context, c *Conn, args [][]byte) error {
	return writeStrings(c, h.engine.Keys(string(args[1])))
}

// TYPE key
func (h *CommandHandler) handleType(_ context.Context, c *Conn, args [][]byte) error {
	return resp.WriteSimpleString(c.bw, string(h.engine.Type(string(args[1]))))
}

// EXISTS key [key ...]; a key named twice counts twice.
func (h *CommandHandler) handleExists(_ context.Context, c *Conn, args [][]byte) error {
	n := 0
	for _, k := range args[1:] {
		if h.engine.Exists(string(k)) {
			n++
		}
	}
	return resp.WriteInteger(c.bw, int64(n))
}

// DEL key [key ...]
func (h *CommandHandler) handleDel(_ context.Context, c *Conn, args [][]byte) error {
	n := 0
	for _, k := range args[1:] {
		if h.engine.Delete(string(k)) {
			n++
		}
	}
	return resp.WriteInteger(c.bw, int64(n))
}
