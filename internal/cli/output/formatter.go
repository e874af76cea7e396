package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/memkv-go/pkg/resp"
)

// Format represents the output format.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatRaw    Format = "raw"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatPretty, FormatRaw, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatPretty, nil
	default:
		return "", fmt.Errorf("output: unknown format %q (want pretty, raw, json or yaml)", s)
	}
}

// Formatter writes one reply.
type Formatter interface {
	Format(w io.Writer, v resp.Value) error
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatRaw:
		return &RawFormatter{}
	default:
		return &PrettyFormatter{}
	}
}

// PrettyFormatter prints typed, numbered replies.
type PrettyFormatter struct{}

func (f *PrettyFormatter) Format(w io.Writer, v resp.Value) error {
	var b strings.Builder
	writePretty(&b, v, 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func writePretty(b *strings.Builder, v resp.Value, indent int) {
	switch {
	case v.Null:
		b.WriteString("(nil)\n")
	case v.Kind == resp.KindSimple:
		b.WriteString(v.Str + "\n")
	case v.Kind == resp.KindError:
		b.WriteString("(error) " + v.Str + "\n")
	case v.Kind == resp.KindInteger:
		b.WriteString("(integer) " + strconv.FormatInt(v.Int, 10) + "\n")
	case v.Kind == resp.KindBulk:
		b.WriteString(strconv.Quote(v.Str) + "\n")
	case v.Kind == resp.KindArray:
		if len(v.Array) == 0 {
			b.WriteString("(empty array)\n")
			return
		}
		width := len(strconv.Itoa(len(v.Array)))
		for i, item := range v.Array {
			if i > 0 {
				b.WriteString(strings.Repeat(" ", indent))
			}
			label := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(label)
			writePretty(b, item, indent+len(label))
		}
	}
}

// RawFormatter prints bare values, one per line.
type RawFormatter struct{}

func (f *RawFormatter) Format(w io.Writer, v resp.Value) error {
	var b strings.Builder
	writeRaw(&b, v)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRaw(b *strings.Builder, v resp.Value) {
	switch {
	case v.Null:
		b.WriteString("\n")
	case v.Kind == resp.KindInteger:
		b.WriteString(strconv.FormatInt(v.Int, 10) + "\n")
	case v.Kind == resp.KindArray:
		for _, item := range v.Array {
			writeRaw(b, item)
		}
	default:
		b.WriteString(v.Str + "\n")
	}
}
