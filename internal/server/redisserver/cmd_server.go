package redisserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/infra/buildinfo"
	"github.com/yndnr/memkv-go/internal/replication"
	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/pkg/resp"
)

var errNoPasswordConfigured = errors.New("AUTH <password> called without any password configured for the default user. Are you sure your configuration is correct?")

// PING [message]
func (h *CommandHandler) handlePing(_ context.Context, c *Conn, args [][]byte) error {
	switch len(args) {
	case 1:
		return resp.WriteSimpleString(c.bw, "PONG")
	case 2:
		return resp.WriteBulk(c.bw, args[1])
	}
	return wrongArity("PING")
}

// ECHO message
func (h *CommandHandler) handleEcho(_ context.Context, c *Conn, args [][]byte) error {
	return resp.WriteBulk(c.bw, args[1])
}

func (h *CommandHandler) handleQuit(_ context.Context, c *Conn, _ [][]byte) error {
	_ = writeOK(c)
	_ = c.flush()
	return c.Close()
}

// AUTH [default] <password>
func (h *CommandHandler) handleAuth(_ context.Context, c *Conn, args [][]byte) error {
	var user, pass string
	switch len(args) {
	case 2:
		user, pass = "default", string(args[1])
	case 3:
		user, pass = string(args[1]), string(args[2])
	default:
		return domain.ErrSyntax
	}

	if h.cfg.RequirePass == "" {
		return errNoPasswordConfigured
	}
	if user != "default" || subtle.ConstantTimeCompare([]byte(pass), []byte(h.cfg.RequirePass)) != 1 {
		return domain.ErrWrongPass
	}
	c.authenticated = true
	return writeOK(c)
}

// INFO [section ...]
func (h *CommandHandler) handleInfo(_ context.Context, c *Conn, args [][]byte) error {
	sections := []string{"server", "replication", "keyspace"}
	if len(args) > 1 {
		sections = sections[:0]
		for _, a := range args[1:] {
			switch s := strings.ToLower(string(a)); s {
			case "all", "everything", "default":
				sections = []string{"server", "replication", "keyspace"}
			default:
				sections = append(sections, s)
			}
		}
	}

	var b strings.Builder
	for _, s := range sections {
		switch s {
		case "server":
			h.infoServer(&b)
		case "replication":
			h.infoReplication(&b)
		case "keyspace":
			h.infoKeyspace(&b)
		default:
			continue
		}
		b.WriteString("\r\n")
	}
	return resp.WriteBulkString(c.bw, strings.TrimSuffix(b.String(), "\r\n"))
}

func (h *CommandHandler) port() string {
	if _, port, err := net.SplitHostPort(h.cfg.Address); err == nil {
		return port
	}
	return ""
}

func (h *CommandHandler) infoServer(b *strings.Builder) {
	info := buildinfo.Get()
	uptime := int64(time.Since(h.started).Seconds())
	fmt.Fprintf(b, "# Server\r\n")
	fmt.Fprintf(b, "redis_version:%s\r\n", info.RedisVersion)
	fmt.Fprintf(b, "memkv_version:%s\r\n", info.Version)
	fmt.Fprintf(b, "memkv_git_sha1:%s\r\n", buildinfo.Short())
	fmt.Fprintf(b, "go_version:%s\r\n", info.GoVersion)
	fmt.Fprintf(b, "tcp_port:%s\r\n", h.port())
	fmt.Fprintf(b, "uptime_in_seconds:%d\r\n", uptime)
}

func (h *CommandHandler) infoReplication(b *strings.Builder) {
	fmt.Fprintf(b, "# Replication\r\n")
	if r := h.replica.Load(); r != nil {
		host, port, _ := net.SplitHostPort(r.MasterAddr())
		status := "down"
		if r.State() == replication.StateStreaming {
			status = "up"
		}
		fmt.Fprintf(b, "role:slave\r\n")
		fmt.Fprintf(b, "master_host:%s\r\n", host)
		fmt.Fprintf(b, "master_port:%s\r\n", port)
		fmt.Fprintf(b, "master_link_status:%s\r\n", status)
		fmt.Fprintf(b, "slave_repl_offset:%d\r\n", r.Offset())
		fmt.Fprintf(b, "master_replid:%s\r\n", r.MasterReplID())
		fmt.Fprintf(b, "connected_slaves:%d\r\n", h.master.Count())
		return
	}

	replicas := h.master.Replicas()
	fmt.Fprintf(b, "role:master\r\n")
	fmt.Fprintf(b, "connected_slaves:%d\r\n", len(replicas))
	for i, r := range replicas {
		host, _, _ := net.SplitHostPort(r.Addr)
		fmt.Fprintf(b, "slave%d:ip=%s,port=%s,state=online,offset=%d,lag=0\r\n",
			i, host, r.ListeningPort, r.Acked)
	}
	fmt.Fprintf(b, "master_replid:%s\r\n", h.master.ReplID())
	fmt.Fprintf(b, "master_repl_offset:%d\r\n", h.master.Offset())
}

func (h *CommandHandler) infoKeyspace(b *strings.Builder) {
	fmt.Fprintf(b, "# Keyspace\r\n")
	n := h.engine.DBSize()
	if n == 0 {
		return
	}
	expires := 0
	for _, e := range h.engine.Strings.Entries() {
		if !e.ExpireAt.IsZero() {
			expires++
		}
	}
	fmt.Fprintf(b, "db0:keys=%d,expires=%d,avg_ttl=0\r\n", n, expires)
}

// CONFIG GET parameter [parameter ...]
func (h *CommandHandler) handleConfig(_ context.Context, c *Conn, args [][]byte) error {
	sub := strings.ToUpper(string(args[1]))
	if sub != "GET" {
		return fmt.Errorf("unknown subcommand '%s'. Try CONFIG GET", strings.ToLower(sub))
	}
	if len(args) < 3 {
		return wrongArity("CONFIG|GET")
	}

	requirepass := ""
	if h.cfg.RequirePass != "" {
		requirepass = "********"
	}
	params := map[string]string{
		"dir":         h.engine.Snapshot().Dir(),
		"dbfilename":  h.engine.Snapshot().DBFilename(),
		"port":        h.port(),
		"requirepass": requirepass,
		"appendonly":  "no",
		"save":        "",
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	var out []string
	for _, a := range args[2:] {
		pattern := strings.ToLower(string(a))
		for _, name := range names {
			if !seen[name] && storage.MatchGlob(pattern, name) {
				seen[name] = true
				out = append(out, name, params[name])
			}
		}
	}
	return writeStrings(c, out)
}

// COMMAND [subcommand]: clients probe it on connect; an empty reply is
// enough for them to fall back to defaults.
func (h *CommandHandler) handleCommand(_ context.Context, c *Conn, _ [][]byte) error {
	return resp.WriteArrayHeader(c.bw, 0)
}

func (h *CommandHandler) handleSave(ctx context.Context, c *Conn, _ [][]byte) error {
	if _, err := h.engine.Save(ctx); err != nil {
		return err
	}
	return writeOK(c)
}

func (h *CommandHandler) handleDBSize(_ context.Context, c *Conn, _ [][]byte) error {
	return resp.WriteInteger(c.bw, int64(h.engine.DBSize()))
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
