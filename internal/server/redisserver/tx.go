package redisserver

import (
	"context"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/pkg/resp"
)

// transaction is the command queue of a connection between MULTI and EXEC.
type transaction struct {
	queued []queuedCommand
	// dirty is set when a queued command was rejected; EXEC then aborts.
	dirty bool
}

type queuedCommand struct {
	cmd  *command
	args [][]byte
}

func (h *CommandHandler) enqueue(c *Conn, name string, cmd *command, args [][]byte) {
	switch {
	case cmd == nil:
		c.tx.dirty = true
		h.writeError(c, "unknown", unknownCommand(name))
	case !cmd.arityOK(len(args)):
		c.tx.dirty = true
		h.writeError(c, cmd.name, wrongArity(cmd.name))
	default:
		c.tx.queued = append(c.tx.queued, queuedCommand{cmd: cmd, args: args})
		_ = resp.WriteSimpleString(c.bw, "QUEUED")
	}
}

// MULTI
func (h *CommandHandler) handleMulti(_ context.Context, c *Conn, _ [][]byte) error {
	if c.tx != nil {
		return domain.ErrNestedMulti
	}
	c.tx = &transaction{}
	return writeOK(c)
}

// EXEC runs the queued commands in order and replies with an array of
// their replies. Other clients may interleave between the commands.
func (h *CommandHandler) handleExec(ctx context.Context, c *Conn, _ [][]byte) error {
	tx := c.tx
	if tx == nil {
		return domain.ErrExecWithoutMulti
	}
	c.tx = nil
	if tx.dirty {
		return domain.ErrExecAbort
	}

	if err := resp.WriteArrayHeader(c.bw, len(tx.queued)); err != nil {
		return err
	}
	c.inExec = true
	defer func() { c.inExec = false }()
	for _, q := range tx.queued {
		// Failures are part of the reply array.
		_ = h.execute(ctx, c, q.cmd, q.args, true)
	}
	return nil
}

// DISCARD
func (h *CommandHandler) handleDiscard(_ context.Context, c *Conn, _ [][]byte) error {
	if c.tx == nil {
		return domain.ErrDiscardWithoutMulti
	}
	c.tx = nil
	return writeOK(c)
}
