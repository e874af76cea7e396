package resp

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// WriteSimpleString writes "+s". s must not contain CR or LF.
func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + s + "\r\n")
	return err
}

// WriteError writes "-s"; s carries its own prefix such as "ERR".
func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteInteger(w *bufio.Writer, n int64) error {
	_, err := w.WriteString(":" + strconv.FormatInt(n, 10) + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteNullArray(w *bufio.Writer) error {
	_, err := w.WriteString("*-1\r\n")
	return err
}

// WriteBulk writes b as a bulk string; a nil slice is written as the null bulk.
func WriteBulk(w *bufio.Writer, b []byte) error {
	if b == nil {
		return WriteNullBulk(w)
	}
	if _, err := w.WriteString("$" + strconv.Itoa(len(b)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	if _, err := w.WriteString("$" + strconv.Itoa(len(s)) + "\r\n"); err != nil {
		return err
	}
	_, err := w.WriteString(s + "\r\n")
	return err
}

// WriteArrayHeader writes "*n"; the n elements follow.
func WriteArrayHeader(w *bufio.Writer, n int) error {
	_, err := w.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}

// WriteBulkStrings writes ss as an array of bulk strings.
func WriteBulkStrings(w *bufio.Writer, ss []string) error {
	if err := WriteArrayHeader(w, len(ss)); err != nil {
		return err
	}
	for _, s := range ss {
		if err := WriteBulkString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCommand renders args as a request array, the form in which write
// commands are forwarded to replicas.
func EncodeCommand(args ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Grow(EncodedLen(args))
	buf.WriteString("*" + strconv.Itoa(len(args)) + "\r\n")
	for _, a := range args {
		buf.WriteString("$" + strconv.Itoa(len(a)) + "\r\n")
		buf.Write(a)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// EncodeStrings is EncodeCommand for string arguments.
func EncodeStrings(args ...string) []byte {
	bs := make([][]byte, len(args))
	for i, a := range args {
		bs[i] = []byte(a)
	}
	return EncodeCommand(bs...)
}

// EncodedLen returns the number of bytes EncodeCommand produces for args.
func EncodedLen(args [][]byte) int {
	n := 1 + len(strconv.Itoa(len(args))) + 2
	for _, a := range args {
		n += 1 + len(strconv.Itoa(len(a))) + 2 + len(a) + 2
	}
	return n
}

// CommandName upper-cases an ASCII command name without allocating when it
// is already upper case.
func CommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
