package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/memkv-go/internal/cli/connection"
	"github.com/yndnr/memkv-go/internal/cli/output"
	"github.com/yndnr/memkv-go/pkg/resp"
)

// Executor sends commands to the server.
type Executor interface {
	Addr() string
	Do(ctx context.Context, args ...string) (resp.Value, error)
	DoBlocking(ctx context.Context, args ...string) (resp.Value, error)
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	exec      Executor
	formatter output.Formatter
	completer *Completer
	history   *History

	inTx bool
}

// Option configures a REPL.
type Option func(*REPL)

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// WithFormatter sets the reply formatter.
func WithFormatter(f output.Formatter) Option {
	return func(r *REPL) { r.formatter = f }
}

// New creates a REPL talking to exec.
func New(exec Executor, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		input:     in,
		output:    out,
		exec:      exec,
		formatter: &output.PrettyFormatter{},
		completer: NewCompleter(),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *REPL) prompt() string {
	if r.inTx {
		return r.exec.Addr() + "(TX)> "
	}
	return r.exec.Addr() + "> "
}

// Run reads lines until EOF, exit/quit or a broken connection.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer r.history.Save()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, r.prompt())

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.output)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		done, err := r.execute(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// execute runs one line. It reports whether the session should end.
func (r *REPL) execute(ctx context.Context, line string) (bool, error) {
	args, err := SplitArgs(line)
	if err != nil {
		fmt.Fprintln(r.output, err)
		return false, nil
	}
	if len(args) == 0 {
		return false, nil
	}

	switch strings.ToLower(args[0]) {
	case "exit":
		return true, nil
	case "help":
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		fmt.Fprintln(r.output, strings.Join(r.completer.Complete(prefix), " "))
		return false, nil
	}

	do := r.exec.Do
	if connection.IsBlocking(args) {
		do = r.exec.DoBlocking
	}
	v, err := do(ctx, args...)
	if err != nil {
		return false, fmt.Errorf("connection lost: %w", err)
	}
	r.track(args[0], v)
	if err := r.formatter.Format(r.output, v); err != nil {
		return false, err
	}
	return strings.EqualFold(args[0], "quit"), nil
}

func (r *REPL) track(name string, v resp.Value) {
	switch strings.ToUpper(name) {
	case "MULTI":
		if v.Err() == nil {
			r.inTx = true
		}
	case "EXEC", "DISCARD":
		r.inTx = false
	}
}
