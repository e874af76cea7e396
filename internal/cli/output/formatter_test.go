package output

import (
	"bytes"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/memkv-go/pkg/resp"
)

func bulk(s string) resp.Value { return resp.Value{Kind: resp.KindBulk, Str: s} }

func arr(items ...resp.Value) resp.Value {
	return resp.Value{Kind: resp.KindArray, Array: items}
}

var (
	nilBulk = resp.Value{Kind: resp.KindBulk, Null: true}
	ok      = resp.Value{Kind: resp.KindSimple, Str: "OK"}
	errVal  = resp.Value{Kind: resp.KindError, Str: "ERR syntax error"}
	three   = resp.Value{Kind: resp.KindInteger, Int: 3}
	entries = arr(arr(bulk("1-1"), arr(bulk("a"), bulk("1"))))
)

func format(t *testing.T, f Formatter, v resp.Value) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(&buf, v); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatPretty, false},
		{"RAW", FormatRaw, false},
		{"json", FormatJSON, false},
		{"table", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	if _, ok := NewFormatter(FormatRaw).(*RawFormatter); !ok {
		t.Error("expected RawFormatter")
	}
	if _, ok := NewFormatter("other").(*PrettyFormatter); !ok {
		t.Error("expected PrettyFormatter by default")
	}
}

func TestPrettyFormatter(t *testing.T) {
	f := &PrettyFormatter{}
	tests := []struct {
		name string
		v    resp.Value
		want string
	}{
		{"status", ok, "OK\n"},
		{"error", errVal, "(error) ERR syntax error\n"},
		{"integer", three, "(integer) 3\n"},
		{"bulk", bulk("a\"b"), "\"a\\\"b\"\n"},
		{"nil", nilBulk, "(nil)\n"},
		{"empty array", arr(), "(empty array)\n"},
		{"flat array", arr(bulk("a"), three), "1) \"a\"\n2) (integer) 3\n"},
		{"nested", entries, "1) 1) \"1-1\"\n   2) 1) \"a\"\n      2) \"1\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := format(t, f, tt.v); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestPrettyFormatter_WideIndex(t *testing.T) {
	items := make([]resp.Value, 10)
	for i := range items {
		items[i] = three
	}
	got := format(t, &PrettyFormatter{}, arr(items...))
	if want := " 1) (integer) 3\n"; got[:len(want)] != want {
		t.Errorf("first line = %q, want %q", got[:len(want)], want)
	}
}

func TestRawFormatter(t *testing.T) {
	f := &RawFormatter{}
	if got := format(t, f, entries); got != "1-1\na\n1\n" {
		t.Errorf("entries = %q", got)
	}
	if got := format(t, f, nilBulk); got != "\n" {
		t.Errorf("nil = %q", got)
	}
	if got := format(t, f, errVal); got != "ERR syntax error\n" {
		t.Errorf("error = %q", got)
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{}
	tests := []struct {
		v    resp.Value
		want string
	}{
		{entries, `[["1-1",["a","1"]]]` + "\n"},
		{nilBulk, "null\n"},
		{three, "3\n"},
		{errVal, `{"error":"ERR syntax error"}` + "\n"},
	}
	for _, tt := range tests {
		if got := format(t, f, tt.v); got != tt.want {
			t.Errorf("Format(%+v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := &YAMLFormatter{}

	var got []any
	if err := yaml.Unmarshal([]byte(format(t, f, entries)), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if !reflect.DeepEqual(got, []any{[]any{"1-1", []any{"a", "1"}}}) {
		t.Errorf("entries decoded to %#v", got)
	}

	if out := format(t, f, errVal); out != "error: ERR syntax error\n" {
		t.Errorf("error = %q", out)
	}
}
