package repl

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnbalancedQuotes is returned for a quote that is never closed.
var ErrUnbalancedQuotes = errors.New("invalid argument(s)")

// SplitArgs splits an input line into command arguments.
func SplitArgs(line string) ([]string, error) {
	var (
		args []string
		cur  strings.Builder
		i    int
	)
	for {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			return args, nil
		}

		cur.Reset()
		for i < len(line) && !isSpace(line[i]) {
			switch line[i] {
			case '"':
				n, err := readDoubleQuoted(line[i+1:], &cur)
				if err != nil {
					return nil, err
				}
				i += n + 1
			case '\'':
				end := strings.IndexByte(line[i+1:], '\'')
				if end < 0 {
					return nil, ErrUnbalancedQuotes
				}
				cur.WriteString(line[i+1 : i+1+end])
				i += end + 2
			default:
				cur.WriteByte(line[i])
				i++
			}
			// A closing quote must end the argument.
			if i > 0 && (line[i-1] == '"' || line[i-1] == '\'') && i < len(line) && !isSpace(line[i]) {
				return nil, ErrUnbalancedQuotes
			}
		}
		args = append(args, cur.String())
	}
}

// readDoubleQuoted consumes s up to and including the closing quote and
// returns the number of bytes consumed.
func readDoubleQuoted(s string, out *strings.Builder) (int, error) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				return 0, ErrUnbalancedQuotes
			}
			i++
			switch s[i] {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b':
				out.WriteByte('\b')
			case 'a':
				out.WriteByte('\a')
			case 'x':
				if i+2 < len(s) {
					if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
						out.WriteByte(byte(b))
						i += 2
						continue
					}
				}
				out.WriteByte('x')
			default:
				out.WriteByte(s[i])
			}
		default:
			out.WriteByte(c)
		}
	}
	return 0, ErrUnbalancedQuotes
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
