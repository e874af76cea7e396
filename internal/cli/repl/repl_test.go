package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yndnr/memkv-go/internal/cli/output"
	"github.com/yndnr/memkv-go/pkg/resp"
)

type fakeExec struct {
	calls    [][]string
	blocking []bool
	replies  map[string]resp.Value
	err      error
}

func (f *fakeExec) Addr() string { return "127.0.0.1:6379" }

func (f *fakeExec) Do(_ context.Context, args ...string) (resp.Value, error) {
	return f.record(false, args)
}

func (f *fakeExec) DoBlocking(_ context.Context, args ...string) (resp.Value, error) {
	return f.record(true, args)
}

func (f *fakeExec) record(blocking bool, args []string) (resp.Value, error) {
	f.calls = append(f.calls, args)
	f.blocking = append(f.blocking, blocking)
	if f.err != nil {
		return resp.Value{}, f.err
	}
	if v, ok := f.replies[strings.ToUpper(args[0])]; ok {
		return v, nil
	}
	return resp.Value{Kind: resp.KindSimple, Str: "OK"}, nil
}

func runREPL(t *testing.T, exec *fakeExec, input string, opts ...Option) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := New(exec, strings.NewReader(input), &out, opts...)
	err := r.Run(context.Background())
	return out.String(), err
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\nping\n"},
		{"EOF", ""},
		{"quit is sent", "quit\nping\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExec{}
			if _, err := runREPL(t, exec, tt.input); err != nil {
				t.Errorf("Run() error = %v", err)
			}
			for _, call := range exec.calls {
				if strings.EqualFold(call[0], "ping") {
					t.Error("input after the session ended was executed")
				}
			}
		})
	}
}

func TestREPL_Execute(t *testing.T) {
	exec := &fakeExec{replies: map[string]resp.Value{
		"GET": {Kind: resp.KindBulk, Str: "hello world"},
	}}
	out, err := runREPL(t, exec, "\n  \nset k \"hello world\"\nget k\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("calls = %q, want 2", exec.calls)
	}
	if got := exec.calls[0]; len(got) != 3 || got[2] != "hello world" {
		t.Errorf("SET args = %q", got)
	}
	if !strings.Contains(out, "127.0.0.1:6379> OK\n") {
		t.Errorf("output missing OK reply:\n%s", out)
	}
	if !strings.Contains(out, `"hello world"`) {
		t.Errorf("output missing GET reply:\n%s", out)
	}
}

func TestREPL_LastLineWithoutNewline(t *testing.T) {
	exec := &fakeExec{}
	if _, err := runREPL(t, exec, "ping"); err != nil {
		t.Fatal(err)
	}
	if len(exec.calls) != 1 {
		t.Errorf("calls = %q, want the unterminated line", exec.calls)
	}
}

func TestREPL_SplitError(t *testing.T) {
	exec := &fakeExec{}
	out, err := runREPL(t, exec, "set k \"oops\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(exec.calls) != 0 {
		t.Error("malformed line was sent")
	}
	if !strings.Contains(out, "invalid argument(s)") {
		t.Errorf("output = %q", out)
	}
}

func TestREPL_Help(t *testing.T) {
	out, err := runREPL(t, &fakeExec{}, "help zrev\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ZREVRANGE ZREVRANGEBYSCORE ZREVRANK\n") {
		t.Errorf("output = %q", out)
	}
}

func TestREPL_TransactionPrompt(t *testing.T) {
	out, err := runREPL(t, &fakeExec{}, "multi\nincr n\nexec\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "127.0.0.1:6379(TX)> ") {
		t.Errorf("no TX prompt in %q", out)
	}
	if !strings.HasSuffix(out, "127.0.0.1:6379> \n") {
		t.Errorf("prompt not restored after EXEC: %q", out)
	}
}

func TestREPL_BlockingCommands(t *testing.T) {
	exec := &fakeExec{}
	if _, err := runREPL(t, exec, "xread block 0 streams s $\nxread streams s 0\nwait 1 0\n"); err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false, true}
	for i, b := range want {
		if exec.blocking[i] != b {
			t.Errorf("call %q blocking = %v, want %v", exec.calls[i], exec.blocking[i], b)
		}
	}
}

func TestREPL_ConnectionLost(t *testing.T) {
	exec := &fakeExec{err: errors.New("broken pipe")}
	if _, err := runREPL(t, exec, "ping\n"); err == nil || !strings.Contains(err.Error(), "connection lost") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestREPL_Formatter(t *testing.T) {
	exec := &fakeExec{replies: map[string]resp.Value{
		"INCR": {Kind: resp.KindInteger, Int: 7},
	}}
	out, err := runREPL(t, exec, "incr n\n", WithFormatter(&output.JSONFormatter{}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "> 7\n") {
		t.Errorf("output = %q", out)
	}
}
