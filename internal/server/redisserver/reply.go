package redisserver

import (
	"math"
	"strconv"
	"strings"

	"github.com/yndnr/memkv-go/internal/core/domain"
	"github.com/yndnr/memkv-go/internal/storage/stream"
	"github.com/yndnr/memkv-go/internal/storage/zset"
	"github.com/yndnr/memkv-go/pkg/resp"
)

func writeOK(c *Conn) error {
	return resp.WriteSimpleString(c.bw, "OK")
}

func writeStrings(c *Conn, ss []string) error {
	return resp.WriteBulkStrings(c.bw, ss)
}

// writeEntries writes stream entries as [[id, [field, value, ...]], ...].
func writeEntries(c *Conn, entries []stream.Entry) error {
	if err := resp.WriteArrayHeader(c.bw, len(entries)); err != nil {
		return err
	}
	for _, e := range entries {
		_ = resp.WriteArrayHeader(c.bw, 2)
		_ = resp.WriteBulkString(c.bw, e.ID.String())
		_ = resp.WriteArrayHeader(c.bw, 2*len(e.Fields))
		for _, f := range e.Fields {
			_ = resp.WriteBulkString(c.bw, f.Name)
			if err := resp.WriteBulkString(c.bw, f.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMembers(c *Conn, members []zset.Member, withScores bool) error {
	n := len(members)
	if withScores {
		n *= 2
	}
	if err := resp.WriteArrayHeader(c.bw, n); err != nil {
		return err
	}
	for _, m := range members {
		_ = resp.WriteBulkString(c.bw, m.Name)
		if withScores {
			_ = resp.WriteBulkString(c.bw, formatScore(m.Score))
		}
	}
	return nil
}

// formatScore renders a score the way Redis does: shortest round-trip
// decimal, "inf" and "-inf" for the infinities.
func formatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, domain.ErrNotInteger
	}
	return n, nil
}

func parseIndex(b []byte) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, domain.ErrNotInteger
	}
	return n, nil
}

// parseScore accepts finite floats and the -inf/+inf spellings. NaN is
// rejected.
func parseScore(b []byte) (float64, error) {
	s := strings.ToLower(string(b))
	switch s {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, domain.ErrNotFloat
	}
	return f, nil
}

// parseScoreBound parses a ZRANGEBYSCORE bound. A leading '(' makes it
// exclusive, which is folded into the next representable float.
func parseScoreBound(b []byte, isMin bool) (float64, error) {
	exclusive := len(b) > 0 && b[0] == '('
	if exclusive {
		b = b[1:]
	}
	f, err := parseScore(b)
	if err != nil {
		return 0, domain.NewDomainError(domain.ErrNotFloat.Code, "min or max is not a float")
	}
	if exclusive {
		if isMin {
			f = math.Nextafter(f, math.Inf(1))
		} else {
			f = math.Nextafter(f, math.Inf(-1))
		}
	}
	return f, nil
}
