package stream

import (
	"math"
	"strconv"
	"strings"

	"github.com/yndnr/memkv-go/internal/core/domain"
)

// ID identifies a stream entry.
type ID struct {
	Ms  uint64
	Seq uint64
}

// MaxID is the greatest possible id.
var MaxID = ID{Ms: math.MaxUint64, Seq: math.MaxUint64}

func (id ID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Compare returns -1, 0 or 1 comparing id and o numerically.
func (id ID) Compare(o ID) int {
	switch {
	case id.Ms < o.Ms:
		return -1
	case id.Ms > o.Ms:
		return 1
	case id.Seq < o.Seq:
		return -1
	case id.Seq > o.Seq:
		return 1
	}
	return 0
}

// IsZero reports whether id is 0-0.
func (id ID) IsZero() bool {
	return id.Ms == 0 && id.Seq == 0
}

// ParseID parses "<ms>-<seq>" or "<ms>". A missing sequence takes
// defaultSeq, which lets range ends default to the last sequence.
func ParseID(s string, defaultSeq uint64) (ID, error) {
	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return ID{}, domain.ErrStreamIDInvalid.WithDetails(s)
	}
	if !hasSeq {
		return ID{Ms: ms, Seq: defaultSeq}, nil
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return ID{}, domain.ErrStreamIDInvalid.WithDetails(s)
	}
	return ID{Ms: ms, Seq: seq}, nil
}

// nextID resolves an XADD id argument against the last id of the stream.
//
//	"*"        current millisecond, sequence continues within the same ms
//	"<ms>-*"   given millisecond, sequence continues or starts fresh
//	"<ms>-<n>" explicit
//
// The result is validated by the caller.
func nextID(spec string, last ID, nowMs uint64) (ID, error) {
	if spec == "*" {
		if nowMs <= last.Ms {
			// Same millisecond, or the clock went backwards.
			return ID{Ms: last.Ms, Seq: last.Seq + 1}, nil
		}
		return ID{Ms: nowMs}, nil
	}

	msPart, seqPart, hasSeq := strings.Cut(spec, "-")
	if hasSeq && seqPart == "*" {
		ms, err := strconv.ParseUint(msPart, 10, 64)
		if err != nil {
			return ID{}, domain.ErrStreamIDInvalid.WithDetails(spec)
		}
		switch {
		case ms == last.Ms:
			return ID{Ms: ms, Seq: last.Seq + 1}, nil
		case ms == 0:
			return ID{Ms: 0, Seq: 1}, nil
		default:
			return ID{Ms: ms}, nil
		}
	}

	return ParseID(spec, 0)
}

// validateNext enforces strict monotonicity of appended ids.
func validateNext(id, last ID) error {
	if id.IsZero() {
		return domain.ErrStreamIDTooSmall
	}
	if id.Compare(last) <= 0 {
		return domain.ErrStreamIDNotGreater
	}
	return nil
}
