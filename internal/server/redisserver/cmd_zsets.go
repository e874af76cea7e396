package redisserver

import (
	"context"
	"slices"
	"strings"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/storage/zset"
	"github.com/yndnr/memkv-go/pkg/resp"
)

func (h *CommandHandler) zsetKey(args [][]byte) (string, error) {
	key := string(args[1])
	return key, h.engine.CheckType(key, domain.TypeZSet)
}

// ZADD key score member [score member ...]
func (h *CommandHandler) handleZAdd(_ context.Context, c *Conn, args [][]byte) error {
	if (len(args)-2)%2 != 0 {
		return domain.ErrSyntax
	}
	pairs := make([]zset.Member, 0, (len(args)-2)/2)
	for i := 2; i < len(args); i += 2 {
		score, err := parseScore(args[i])
		if err != nil {
			return err
		}
		pairs = append(pairs, zset.Member{Name: string(args[i+1]), Score: score})
	}

	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	added := 0
	for _, p := range pairs {
		if h.engine.ZSets.Add(key, p.Name, p.Score) {
			added++
		}
	}
	return resp.WriteInteger(c.bw, int64(added))
}

// ZINCRBY key increment member
func (h *CommandHandler) handleZIncrBy(_ context.Context, c *Conn, args [][]byte) error {
	delta, err := parseScore(args[2])
	if err != nil {
		return err
	}
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	score, err := h.engine.ZSets.IncrBy(key, string(args[3]), delta)
	if err != nil {
		return err
	}
	return resp.WriteBulkString(c.bw, formatScore(score))
}

// ZREM key member [member ...]
func (h *CommandHandler) handleZRem(_ context.Context, c *Conn, args [][]byte) error {
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	n := 0
	for _, m := range args[2:] {
		if h.engine.ZSets.Remove(key, string(m)) {
			n++
		}
	}
	return resp.WriteInteger(c.bw, int64(n))
}

// ZSCORE key member
func (h *CommandHandler) handleZScore(_ context.Context, c *Conn, args [][]byte) error {
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	score, ok := h.engine.ZSets.Score(key, string(args[2]))
	if !ok {
		return resp.WriteNullBulk(c.bw)
	}
	return resp.WriteBulkString(c.bw, formatScore(score))
}

// ZRANK key member
func (h *CommandHandler) handleZRank(_ context.Context, c *Conn, args [][]byte) error {
	return h.rank(c, args, h.engine.ZSets.Rank)
}

// ZREVRANK key member
func (h *CommandHandler) handleZRevRank(_ context.Context, c *Conn, args [][]byte) error {
	return h.rank(c, args, h.engine.ZSets.RevRank)
}

func (h *CommandHandler) rank(c *Conn, args [][]byte, rankFn func(key, member string) (int, bool)) error {
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	r, ok := rankFn(key, string(args[2]))
	if !ok {
		return resp.WriteNullBulk(c.bw)
	}
	return resp.WriteInteger(c.bw, int64(r))
}

func parseWithScores(opts [][]byte) (bool, error) {
	switch {
	case len(opts) == 0:
		return false, nil
	case len(opts) == 1 && strings.EqualFold(string(opts[0]), "WITHSCORES"):
		return true, nil
	}
	return false, domain.ErrSyntax
}

// ZRANGE key start stop [WITHSCORES]
func (h *CommandHandler) handleZRange(_ context.Context, c *Conn, args [][]byte) error {
	return h.rangeByRank(c, args, h.engine.ZSets.RangeByRank)
}

// ZREVRANGE key start stop [WITHSCORES]
func (h *CommandHandler) handleZRevRange(_ context.Context, c *Conn, args [][]byte) error {
	return h.rangeByRank(c, args, h.engine.ZSets.RevRangeByRank)
}

func (h *CommandHandler) rangeByRank(c *Conn, args [][]byte, rangeFn func(key string, start, stop int) []zset.Member) error {
	start, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	stop, err := parseIndex(args[3])
	if err != nil {
		return err
	}
	withScores, err := parseWithScores(args[4:])
	if err != nil {
		return err
	}
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	return writeMembers(c, rangeFn(key, start, stop), withScores)
}

// scoreRangeOptions holds the trailing options of ZRANGEBYSCORE.
type scoreRangeOptions struct {
	withScores bool
	offset     int
	count      int // negative means all
}

func parseScoreRangeOptions(opts [][]byte) (scoreRangeOptions, error) {
	o := scoreRangeOptions{count: -1}
	for i := 0; i < len(opts); i++ {
		switch strings.ToUpper(string(opts[i])) {
		case "WITHSCORES":
			o.withScores = true
		case "LIMIT":
			if i+2 >= len(opts) {
				return o, domain.ErrSyntax
			}
			off, err := parseIndex(opts[i+1])
			if err != nil {
				return o, err
			}
			cnt, err := parseIndex(opts[i+2])
			if err != nil {
				return o, err
			}
			o.offset, o.count = off, cnt
			i += 2
		default:
			return o, domain.ErrSyntax
		}
	}
	return o, nil
}

func (o scoreRangeOptions) apply(ms []zset.Member) []zset.Member {
	if o.offset < 0 || o.offset > len(ms) {
		return nil
	}
	ms = ms[o.offset:]
	if o.count >= 0 && o.count < len(ms) {
		ms = ms[:o.count]
	}
	return ms
}

// ZRANGEBYSCORE key min max [WITHSCORES] [LIMIT offset count]
func (h *CommandHandler) handleZRangeByScore(_ context.Context, c *Conn, args [][]byte) error {
	return h.rangeByScore(c, args[1], args[2], args[3], args[4:], false)
}

// ZREVRANGEBYSCORE key max min [WITHSCORES] [LIMIT offset count]
func (h *CommandHandler) handleZRevRangeByScore(_ context.Context, c *Conn, args [][]byte) error {
	return h.rangeByScore(c, args[1], args[3], args[2], args[4:], true)
}

func (h *CommandHandler) rangeByScore(c *Conn, rawKey, rawMin, rawMax []byte, rawOpts [][]byte, reverse bool) error {
	lo, err := parseScoreBound(rawMin, true)
	if err != nil {
		return err
	}
	hi, err := parseScoreBound(rawMax, false)
	if err != nil {
		return err
	}
	opts, err := parseScoreRangeOptions(rawOpts)
	if err != nil {
		return err
	}
	key := string(rawKey)
	if err := h.engine.CheckType(key, domain.TypeZSet); err != nil {
		return err
	}

	ms := h.engine.ZSets.RangeByScore(key, lo, hi)
	if reverse {
		slices.Reverse(ms)
	}
	return writeMembers(c, opts.apply(ms), opts.withScores)
}

// ZCARD key
func (h *CommandHandler) handleZCard(_ context.Context, c *Conn, args [][]byte) error {
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.ZSets.Card(key)))
}

// ZCOUNT key min max
func (h *CommandHandler) handleZCount(_ context.Context, c *Conn, args [][]byte) error {
	lo, err := parseScoreBound(args[2], true)
	if err != nil {
		return err
	}
	hi, err := parseScoreBound(args[3], false)
	if err != nil {
		return err
	}
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.ZSets.Count(key, lo, hi)))
}

// ZREMRANGEBYSCORE key min max
func (h *CommandHandler) handleZRemRangeByScore(_ context.Context, c *Conn, args [][]byte) error {
	lo, err := parseScoreBound(args[2], true)
	if err != nil {
		return err
	}
	hi, err := parseScoreBound(args[3], false)
	if err != nil {
		return err
	}
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.ZSets.RemoveRangeByScore(key, lo, hi)))
}

// ZREMRANGEBYRANK key start stop
func (h *CommandHandler) handleZRemRangeByRank(_ context.Context, c *Conn, args [][]byte) error {
	start, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	stop, err := parseIndex(args[3])
	if err != nil {
		return err
	}
	key, err := h.zsetKey(args)
	if err != nil {
		return err
	}
	return resp.WriteInteger(c.bw, int64(h.engine.ZSets.RemoveRangeByRank(key, start, stop)))
}
