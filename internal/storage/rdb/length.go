package rdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Length encodings, selected by the top two bits of the first byte.
const (
	len6Bit    = 0x00
	len14Bit   = 0x01
	len32Bit   = 0x02
	lenSpecial = 0x03
)

// Special string encodings carried in the low six bits of a 0b11 byte.
const (
	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
)

var (
	// ErrLengthTooLarge is returned when a length does not fit in 32 bits.
	ErrLengthTooLarge = errors.New("rdb: length exceeds 32 bits")
	// ErrUnsupportedEncoding is returned for compressed or unknown string encodings.
	ErrUnsupportedEncoding = errors.New("rdb: unsupported string encoding")
)

func appendLength(buf []byte, n uint64) ([]byte, error) {
	switch {
	case n < 1<<6:
		return append(buf, byte(n)), nil
	case n < 1<<14:
		return append(buf, byte(len14Bit<<6|n>>8), byte(n)), nil
	case n <= 0xFFFFFFFF:
		buf = append(buf, len32Bit<<6)
		return binary.BigEndian.AppendUint32(buf, uint32(n)), nil
	}
	return buf, ErrLengthTooLarge
}

func appendString(buf []byte, s string) ([]byte, error) {
	buf, err := appendLength(buf, uint64(len(s)))
	if err != nil {
		return buf, err
	}
	return append(buf, s...), nil
}

// byteReader is what the decoder needs from its input.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// readLength reads a length. special is true when the value is one of the
// 0b11 string encodings, in which case n is the encoding id.
func readLength(r byteReader) (n uint64, special bool, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	switch b >> 6 {
	case len6Bit:
		return uint64(b & 0x3F), false, nil
	case len14Bit:
		b2, err := r.ReadByte()
		if err != nil {
			return 0, false, unexpected(err)
		}
		return uint64(b&0x3F)<<8 | uint64(b2), false, nil
	case len32Bit:
		var raw [4]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return 0, false, unexpected(err)
		}
		return uint64(binary.BigEndian.Uint32(raw[:])), false, nil
	}
	// lenSpecial
	return uint64(b & 0x3F), true, nil
}

// readPlainLength reads a length that must not use a special encoding.
func readPlainLength(r byteReader) (uint64, error) {
	n, special, err := readLength(r)
	if err != nil {
		return 0, unexpected(err)
	}
	if special {
		return 0, fmt.Errorf("%w: special encoding %d where a length was expected", ErrCorrupt, n)
	}
	return n, nil
}

func readString(r byteReader, maxLen uint64) (string, error) {
	n, special, err := readLength(r)
	if err != nil {
		return "", unexpected(err)
	}
	if special {
		return readEncodedInt(r, n)
	}
	if n > maxLen {
		return "", fmt.Errorf("%w: string of %d bytes", ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", unexpected(err)
	}
	return string(buf), nil
}

func readEncodedInt(r byteReader, enc uint64) (string, error) {
	var size int
	switch enc {
	case encInt8:
		size = 1
	case encInt16:
		size = 2
	case encInt32:
		size = 4
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedEncoding, enc)
	}
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:size]); err != nil {
		return "", unexpected(err)
	}
	var v int64
	switch size {
	case 1:
		v = int64(int8(raw[0]))
	case 2:
		v = int64(int16(binary.LittleEndian.Uint16(raw[:2])))
	case 4:
		v = int64(int32(binary.LittleEndian.Uint32(raw[:4])))
	}
	return strconv.FormatInt(v, 10), nil
}

// unexpected turns a clean EOF in the middle of a record into a truncation error.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
