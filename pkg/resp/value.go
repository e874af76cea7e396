package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Kind is the type byte of a reply.
type Kind byte

const (
	KindSimple  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
)

// Value is a decoded reply. Null bulk strings and null arrays have Null set.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Array []Value
	Null  bool
}

// Err returns the reply as *ReplyError when it is an error reply.
func (v Value) Err() error {
	if v.Kind == KindError {
		return &ReplyError{Message: v.Str}
	}
	return nil
}

// ReadValue reads one complete reply of any type.
func ReadValue(r *bufio.Reader) (Value, error) {
	return readValue(r, 0)
}

// Replies nest at most this deep; XREAD uses four levels.
const maxDepth = 32

func readValue(r *bufio.Reader, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: reply nested too deep", ErrLimitExceeded)
	}
	line, err := ReadLine(r, MaxInlineLen)
	if err != nil {
		return Value{}, err
	}
	if line == "" {
		return Value{}, fmt.Errorf("%w: empty reply", ErrProtocol)
	}

	kind, body := Kind(line[0]), line[1:]
	switch kind {
	case KindSimple, KindError:
		return Value{Kind: kind, Str: body}, nil
	case KindInteger:
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer %q", ErrProtocol, body)
		}
		return Value{Kind: kind, Int: n}, nil
	case KindBulk:
		n, err := strconv.Atoi(body)
		if err != nil || n < -1 {
			return Value{}, fmt.Errorf("%w: invalid bulk length %q", ErrProtocol, body)
		}
		if n == -1 {
			return Value{Kind: kind, Null: true}, nil
		}
		if n > MaxBulkLen {
			return Value{}, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Value{}, err
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return Value{}, fmt.Errorf("%w: bulk not terminated by CRLF", ErrProtocol)
		}
		return Value{Kind: kind, Str: string(buf[:n])}, nil
	case KindArray:
		n, err := strconv.Atoi(body)
		if err != nil || n < -1 {
			return Value{}, fmt.Errorf("%w: invalid array length %q", ErrProtocol, body)
		}
		if n == -1 {
			return Value{Kind: kind, Null: true}, nil
		}
		if n > MaxArrayLen {
			return Value{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
		}
		items := make([]Value, n)
		for i := range items {
			if items[i], err = readValue(r, depth+1); err != nil {
				return Value{}, err
			}
		}
		return Value{Kind: kind, Array: items}, nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected reply type %q", ErrProtocol, line[0])
	}
}
