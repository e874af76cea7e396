package redisserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/memkv-go/pkg/resp"
)

var errPsyncNotAllowed = errors.New("PSYNC is not allowed on this connection")

// REPLCONF listening-port <port> | capa <capability> | ACK <offset> | GETACK *
func (h *CommandHandler) handleReplconf(_ context.Context, c *Conn, args [][]byte) error {
	switch strings.ToUpper(string(args[1])) {
	case "LISTENING-PORT":
		if len(args) != 3 {
			return wrongArity("REPLCONF")
		}
		if _, err := strconv.ParseUint(string(args[2]), 10, 16); err != nil {
			return fmt.Errorf("invalid listening-port %q", args[2])
		}
		c.listeningPort = string(args[2])
	case "ACK":
		// Only meaningful from an attached replica, which Handle routes
		// before it gets here.
		return nil
	}
	return writeOK(c)
}

// replicaAck records "REPLCONF ACK <offset>" from an attached replica.
func (h *CommandHandler) replicaAck(id string, args [][]byte) {
	if len(args) < 3 || !strings.EqualFold(string(args[1]), "ACK") {
		return
	}
	offset, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		h.logger.Warn("invalid replica ack", "replica_id", id, "offset", string(args[2]))
		return
	}
	h.master.Ack(id, offset)
}

// PSYNC <replid> <offset> always answers with a full resync: the snapshot
// is sent as one bulk string, then the connection becomes a replica and
// receives every later write.
func (h *CommandHandler) handlePsync(_ context.Context, c *Conn, _ [][]byte) error {
	if c.netConn == nil {
		return errPsyncNotAllowed
	}

	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	payload, err := h.engine.DumpBytes()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_ = resp.WriteSimpleString(c.bw, "FULLRESYNC "+h.master.ReplID()+" 0")
	_ = resp.WriteBulk(c.bw, payload)
	err = c.flushLocked()
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	id := h.master.Register(c, c.listeningPort)
	c.replicaID.Store(&id)
	return nil
}

// WAIT numreplicas timeout-ms
func (h *CommandHandler) handleWait(ctx context.Context, c *Conn, args [][]byte) error {
	n, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	ms, err := parseInt(args[2])
	if err != nil {
		return err
	}
	if ms < 0 {
		return errNegativeTimeout
	}

	if c.inExec {
		return resp.WriteInteger(c.bw, int64(h.master.InSync()))
	}

	ctx, stop := c.blockingContext(ctx)
	defer stop()
	got := h.master.Wait(ctx, n, time.Duration(ms)*time.Millisecond)
	return resp.WriteInteger(c.bw, int64(got))
}
