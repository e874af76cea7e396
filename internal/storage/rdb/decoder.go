package rdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/yndnr/memkv-go/internal/storage/stream"
	"github.com/yndnr/memkv-go/internal/storage/zset"
)

var (
	// ErrInvalidHeader is returned when the file does not start with a
	// supported magic and version.
	ErrInvalidHeader = errors.New("rdb: invalid header")
	// ErrUnknownOpcode is returned for record types the decoder does not know.
	ErrUnknownOpcode = errors.New("rdb: unknown opcode")
	// ErrCorrupt is returned for structurally invalid records.
	ErrCorrupt = errors.New("rdb: corrupt record")
)

// MaxStringLen bounds a single decoded string.
const MaxStringLen = 512 << 20

// Decode reads a snapshot. Strings whose expiry is at or before now are
// dropped. On failure the records read before the bad one are returned
// together with the error, so callers can keep a partial load.
func Decode(r io.Reader, now time.Time) (*Snapshot, error) {
	d := &decoder{r: bufio.NewReader(r), now: now.UnixMilli()}
	snap := &Snapshot{}
	err := d.decode(snap)
	return snap, err
}

type decoder struct {
	r   *bufio.Reader
	now int64
}

func (d *decoder) decode(snap *Snapshot) error {
	var magic [len(Header)]byte
	if _, err := io.ReadFull(d.r, magic[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(magic[:5]) != "REDIS" {
		return fmt.Errorf("%w: %q", ErrInvalidHeader, magic[:])
	}

	var expireAt int64
	for {
		op, err := d.r.ReadByte()
		if errors.Is(err, io.EOF) {
			// A missing EOF marker is tolerated.
			return nil
		}
		if err != nil {
			return err
		}

		switch op {
		case opEOF:
			// The checksum is not verified; a short one is ignored too.
			_, _ = io.CopyN(io.Discard, d.r, 8)
			return nil

		case opSelectDB:
			if _, err := readPlainLength(d.r); err != nil {
				return err
			}

		case opAux:
			if _, err := readString(d.r, MaxStringLen); err != nil {
				return err
			}
			if _, err := readString(d.r, MaxStringLen); err != nil {
				return err
			}

		case opResizeDB:
			if _, err := readPlainLength(d.r); err != nil {
				return err
			}
			if _, err := readPlainLength(d.r); err != nil {
				return err
			}

		case opExpireTimeMs:
			var raw [8]byte
			if _, err := io.ReadFull(d.r, raw[:]); err != nil {
				return unexpected(err)
			}
			expireAt = int64(binary.LittleEndian.Uint64(raw[:]))
			continue

		case opExpireTime:
			var raw [4]byte
			if _, err := io.ReadFull(d.r, raw[:]); err != nil {
				return unexpected(err)
			}
			expireAt = int64(binary.LittleEndian.Uint32(raw[:])) * 1000
			continue

		case typeString:
			rec, err := d.readStringRecord(expireAt)
			if err != nil {
				return err
			}
			if expireAt == 0 || expireAt > d.now {
				snap.Strings = append(snap.Strings, rec)
			}

		case typeList:
			rec, err := d.readList()
			if err != nil {
				return err
			}
			if len(rec.Items) > 0 {
				snap.Lists = append(snap.Lists, rec)
			}

		case typeZSet:
			rec, err := d.readZSet()
			if err != nil {
				return err
			}
			if len(rec.Members) > 0 {
				snap.ZSets = append(snap.ZSets, rec)
			}

		case typeStream:
			rec, err := d.readStream()
			if err != nil {
				return err
			}
			if len(rec.Entries) > 0 {
				snap.Streams = append(snap.Streams, rec)
			}

		default:
			return fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, op)
		}

		// An expiry applies to the record right after it only.
		expireAt = 0
	}
}

func (d *decoder) readStringRecord(expireAt int64) (String, error) {
	key, err := readString(d.r, MaxStringLen)
	if err != nil {
		return String{}, err
	}
	val, err := readString(d.r, MaxStringLen)
	if err != nil {
		return String{}, err
	}
	rec := String{Key: key, Value: val}
	if expireAt != 0 {
		rec.ExpireAt = time.UnixMilli(expireAt)
	}
	return rec, nil
}

func (d *decoder) readList() (List, error) {
	key, err := readString(d.r, MaxStringLen)
	if err != nil {
		return List{}, err
	}
	n, err := readPlainLength(d.r)
	if err != nil {
		return List{}, err
	}
	items := make([]string, 0, min(n, 1024))
	for range n {
		it, err := readString(d.r, MaxStringLen)
		if err != nil {
			return List{}, err
		}
		items = append(items, it)
	}
	return List{Key: key, Items: items}, nil
}

func (d *decoder) readZSet() (ZSet, error) {
	key, err := readString(d.r, MaxStringLen)
	if err != nil {
		return ZSet{}, err
	}
	n, err := readPlainLength(d.r)
	if err != nil {
		return ZSet{}, err
	}
	members := make([]zset.Member, 0, min(n, 1024))
	for range n {
		name, err := readString(d.r, MaxStringLen)
		if err != nil {
			return ZSet{}, err
		}
		var raw [8]byte
		if _, err := io.ReadFull(d.r, raw[:]); err != nil {
			return ZSet{}, unexpected(err)
		}
		score := math.Float64frombits(binary.BigEndian.Uint64(raw[:]))
		if math.IsNaN(score) {
			return ZSet{}, fmt.Errorf("%w: NaN score in %q", ErrCorrupt, key)
		}
		members = append(members, zset.Member{Name: name, Score: score})
	}
	return ZSet{Key: key, Members: members}, nil
}

func (d *decoder) readStream() (Stream, error) {
	key, err := readString(d.r, MaxStringLen)
	if err != nil {
		return Stream{}, err
	}
	groups, err := readPlainLength(d.r)
	if err != nil {
		return Stream{}, err
	}

	var (
		entries []stream.Entry
		last    stream.ID
	)
	for range groups {
		rawBase, err := readString(d.r, MaxStringLen)
		if err != nil {
			return Stream{}, err
		}
		base, err := stream.ParseID(rawBase, 0)
		if err != nil {
			return Stream{}, fmt.Errorf("%w: stream %q base id %q", ErrCorrupt, key, rawBase)
		}
		count, err := readPlainLength(d.r)
		if err != nil {
			return Stream{}, err
		}
		nfields, err := readPlainLength(d.r)
		if err != nil {
			return Stream{}, err
		}
		if count == 0 || nfields == 0 {
			return Stream{}, fmt.Errorf("%w: stream %q has an empty group", ErrCorrupt, key)
		}

		names := make([]string, 0, min(nfields, 1024))
		seen := make(map[string]struct{}, nfields)
		for range nfields {
			name, err := readString(d.r, MaxStringLen)
			if err != nil {
				return Stream{}, err
			}
			if _, dup := seen[name]; dup {
				return Stream{}, fmt.Errorf("%w: stream %q repeats field %q in a group", ErrCorrupt, key, name)
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}

		for range count {
			delta, err := readPlainLength(d.r)
			if err != nil {
				return Stream{}, err
			}
			id := stream.ID{Ms: base.Ms, Seq: base.Seq + delta}
			if len(entries) > 0 && id.Compare(last) <= 0 {
				return Stream{}, fmt.Errorf("%w: stream %q ids out of order at %s", ErrCorrupt, key, id)
			}
			fields := make([]stream.Field, len(names))
			for i, name := range names {
				val, err := readString(d.r, MaxStringLen)
				if err != nil {
					return Stream{}, err
				}
				fields[i] = stream.Field{Name: name, Value: val}
			}
			entries = append(entries, stream.Entry{ID: id, Fields: fields})
			last = id
		}
	}
	return Stream{Key: key, Entries: entries}, nil
}
