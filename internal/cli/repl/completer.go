package repl

import (
	"sort"
	"strings"
)

// Commands lists the commands memkv-server understands.
var Commands = []string{
	"AUTH", "COMMAND", "CONFIG", "DBSIZE", "DEL", "DISCARD", "ECHO", "EXEC",
	"EXISTS", "GET", "INCR", "INCRBY", "INFO", "KEYS", "LLEN", "LPOP", "LPUSH",
	"LRANGE", "LREM", "MULTI", "PING", "PSYNC", "QUIT", "REPLCONF", "RPOP",
	"RPUSH", "SAVE", "SET", "TYPE", "WAIT", "XADD", "XRANGE", "XREAD", "ZADD",
	"ZCARD", "ZCOUNT", "ZINCRBY", "ZRANGE", "ZRANGEBYSCORE", "ZRANK", "ZREM",
	"ZREMRANGEBYRANK", "ZREMRANGEBYSCORE", "ZREVRANGE", "ZREVRANGEBYSCORE",
	"ZREVRANK", "ZSCORE",
}

// Completer suggests command names.
type Completer struct {
	commands []string
}

// NewCompleter creates a completer over Commands plus the REPL built-ins.
func NewCompleter() *Completer {
	cmds := append([]string{"EXIT", "HELP"}, Commands...)
	sort.Strings(cmds)
	return &Completer{commands: cmds}
}

// Complete returns the commands starting with prefix, ignoring case.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
