package rdb

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"slices"

	"github.com/yndnr/memkv-go/internal/infra/buildinfo"
	"github.com/yndnr/memkv-go/internal/storage/stream"
)

// Version is written as the redis-ver auxiliary field.
const Version = buildinfo.RedisVersion

// Encoder writes a snapshot file.
type Encoder struct {
	w   *bufio.Writer
	buf []byte
	err error
}

// NewEncoder returns an encoder writing to w. Call Close to flush.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

func (e *Encoder) flushBuf() {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(e.buf)
	e.buf = e.buf[:0]
}

func (e *Encoder) putByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *Encoder) putLength(n int) {
	if e.err != nil {
		return
	}
	e.buf, e.err = appendLength(e.buf, uint64(n))
}

func (e *Encoder) putString(s string) {
	if e.err != nil {
		return
	}
	e.buf, e.err = appendString(e.buf, s)
}

// WriteHeader writes the magic, the redis-ver aux field, the database
// selector and a resize hint.
func (e *Encoder) WriteHeader(keys, expires int) error {
	e.buf = append(e.buf, Header...)
	e.putByte(opAux)
	e.putString("redis-ver")
	e.putString(Version)
	e.putByte(opSelectDB)
	e.putLength(0)
	e.putByte(opResizeDB)
	e.putLength(keys)
	e.putLength(expires)
	e.flushBuf()
	return e.err
}

// WriteString writes a string record, preceded by a millisecond expiry
// when the record has one.
func (e *Encoder) WriteString(r String) error {
	if !r.ExpireAt.IsZero() {
		e.putByte(opExpireTimeMs)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(r.ExpireAt.UnixMilli()))
	}
	e.putByte(typeString)
	e.putString(r.Key)
	e.putString(r.Value)
	e.flushBuf()
	return e.err
}

// WriteList writes a list record.
func (e *Encoder) WriteList(r List) error {
	e.putByte(typeList)
	e.putString(r.Key)
	e.putLength(len(r.Items))
	for _, it := range r.Items {
		e.putString(it)
		if len(e.buf) > 64<<10 {
			e.flushBuf()
		}
	}
	e.flushBuf()
	return e.err
}

// WriteZSet writes a sorted-set record. Scores are 8-byte big-endian
// IEEE-754 doubles.
func (e *Encoder) WriteZSet(r ZSet) error {
	e.putByte(typeZSet)
	e.putString(r.Key)
	e.putLength(len(r.Members))
	for _, m := range r.Members {
		e.putString(m.Name)
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(m.Score))
		if len(e.buf) > 64<<10 {
			e.flushBuf()
		}
	}
	e.flushBuf()
	return e.err
}

// group is a run of entries sharing a millisecond and a field-name list.
type group struct {
	base    stream.ID
	names   []string
	entries []stream.Entry
}

func fieldNames(en stream.Entry) []string {
	names := make([]string, len(en.Fields))
	for i, f := range en.Fields {
		names[i] = f.Name
	}
	return names
}

// groupEntries splits entries into runs with the same millisecond and the
// same field names, so every group has a single field-name header.
func groupEntries(entries []stream.Entry) []group {
	var groups []group
	for _, en := range entries {
		names := fieldNames(en)
		if n := len(groups); n > 0 {
			g := &groups[n-1]
			if g.base.Ms == en.ID.Ms && slices.Equal(g.names, names) {
				g.entries = append(g.entries, en)
				continue
			}
		}
		groups = append(groups, group{base: en.ID, names: names, entries: []stream.Entry{en}})
	}
	return groups
}

// WriteStream writes a stream record: the group count, then per group the
// base id, entry count, field names and, per entry, the sequence delta
// from the base followed by the values in field-name order.
func (e *Encoder) WriteStream(r Stream) error {
	groups := groupEntries(r.Entries)
	e.putByte(typeStream)
	e.putString(r.Key)
	e.putLength(len(groups))
	for _, g := range groups {
		e.putString(g.base.String())
		e.putLength(len(g.entries))
		e.putLength(len(g.names))
		for _, n := range g.names {
			e.putString(n)
		}
		for _, en := range g.entries {
			e.putLength(int(en.ID.Seq - g.base.Seq))
			for _, f := range en.Fields {
				e.putString(f.Value)
			}
		}
		e.flushBuf()
	}
	e.flushBuf()
	return e.err
}

// Close writes the EOF marker and zero checksum and flushes.
func (e *Encoder) Close() error {
	e.putByte(opEOF)
	e.buf = append(e.buf, make([]byte, 8)...)
	e.flushBuf()
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// Encode writes a whole snapshot: strings, streams, lists, then sorted sets.
func Encode(w io.Writer, s *Snapshot) error {
	expires := 0
	for _, r := range s.Strings {
		if !r.ExpireAt.IsZero() {
			expires++
		}
	}

	enc := NewEncoder(w)
	if err := enc.WriteHeader(s.Len(), expires); err != nil {
		return err
	}
	for _, r := range s.Strings {
		if err := enc.WriteString(r); err != nil {
			return err
		}
	}
	for _, r := range s.Streams {
		if err := enc.WriteStream(r); err != nil {
			return err
		}
	}
	for _, r := range s.Lists {
		if err := enc.WriteList(r); err != nil {
			return err
		}
	}
	for _, r := range s.ZSets {
		if err := enc.WriteZSet(r); err != nil {
			return err
		}
	}
	return enc.Close()
}
