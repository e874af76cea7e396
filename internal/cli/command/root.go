package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv-go/internal/cli/config"
	"github.com/yndnr/memkv-go/internal/cli/connection"
	"github.com/yndnr/memkv-go/internal/cli/output"
	"github.com/yndnr/memkv-go/internal/cli/repl"
	"github.com/yndnr/memkv-go/internal/infra/buildinfo"
)

// flagKeys maps flags onto CLI config keys.
var flagKeys = map[string]string{
	"host":     "connection.host",
	"port":     "connection.port",
	"password": "connection.password",
	"timeout":  "connection.timeout",
	"output":   "output.format",
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "memkv-cli",
		Usage:     "command-line client for memkv-server",
		UsageText: "memkv-cli [options] [command [arg...]]",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Action:    run,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "CLI config file (default ~/.memkv/cli.yaml)"},
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Usage: "server host"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "server port"},
		&cli.StringFlag{Name: "password", Aliases: []string{"a"}, Usage: "password for AUTH", EnvVars: []string{"MEMKV_AUTH"}},
		&cli.DurationFlag{Name: "timeout", Usage: "dial and reply timeout"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "pretty, raw, json or yaml"},
		&cli.IntFlag{Name: "repeat", Aliases: []string{"r"}, Value: 1, Usage: "run the command N times"},
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "pause between repeats"},
	}
}

func overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		switch flag {
		case "port":
			out[key] = c.Int(flag)
		case "timeout":
			out[key] = c.Duration(flag)
		default:
			out[key] = c.String(flag)
		}
	}
	return out
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return err
	}
	format, _ := output.ParseFormat(cfg.Output.Format)
	formatter := output.NewFormatter(format)

	ctx := c.Context
	client, err := connection.Dial(ctx, connection.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Connection.Password,
		Timeout:  cfg.Connection.Timeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if c.NArg() == 0 {
		historyFile := cfg.History.File
		if historyFile == "" {
			historyFile = repl.DefaultHistoryFile()
		}
		r := repl.New(client, c.App.Reader, c.App.Writer,
			repl.WithFormatter(formatter),
			repl.WithHistory(repl.NewHistory(historyFile)))
		return r.Run(ctx)
	}

	return runOnce(ctx, c, client, formatter)
}

// runOnce sends the command line arguments --repeat times.
func runOnce(ctx context.Context, c *cli.Context, client *connection.Client, formatter output.Formatter) error {
	args := c.Args().Slice()
	repeat := c.Int("repeat")
	if repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
	}
	interval := c.Duration("interval")

	for i := 0; i < repeat; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		do := client.Do
		if connection.IsBlocking(args) {
			do = client.DoBlocking
		}
		v, err := do(ctx, args...)
		if err != nil {
			return err
		}
		if err := formatter.Format(c.App.Writer, v); err != nil {
			return err
		}
	}
	return nil
}
