package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv-go/internal/infra/buildinfo"
	"github.com/yndnr/memkv-go/internal/infra/confloader"
	"github.com/yndnr/memkv-go/internal/infra/shutdown"
	"github.com/yndnr/memkv-go/internal/replication"
	"github.com/yndnr/memkv-go/internal/server/config"
	"github.com/yndnr/memkv-go/internal/server/redisserver"
	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/storage/snapshot"
	"github.com/yndnr/memkv-go/internal/telemetry/logger"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func newApp() *cli.App {
	return &cli.App{
		Name:    "memkv-server",
		Usage:   "in-memory key-value server speaking RESP",
		Version: buildinfo.String(),
		Flags:   serverFlags(),
		Action: func(c *cli.Context) error {
			return run(c.Context, c)
		},
	}
}

// flagKeys maps command-line flags onto configuration keys. Flags win over
// the config file and the environment.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"port":         "server.port",
	"requirepass":  "server.requirepass",
	"dir":          "storage.dir",
	"dbfilename":   "storage.dbfilename",
	"replicaof":    "replication.replicaof",
	"masterauth":   "replication.masterauth",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML configuration file",
			EnvVars: []string{"MEMKV_CONFIG"},
		},
		&cli.StringFlag{Name: "addr", Usage: "bind address"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "RESP listen port"},
		&cli.StringFlag{Name: "requirepass", Usage: "password clients must AUTH with"},
		&cli.StringFlag{Name: "dir", Usage: "directory holding the snapshot file"},
		&cli.StringFlag{Name: "dbfilename", Usage: "snapshot file name"},
		&cli.StringFlag{Name: "replicaof", Usage: `replicate from "<host> <port>"`},
		&cli.StringFlag{Name: "masterauth", Usage: "password sent to the master"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "log-format", Usage: "json or text"},
	}
}

// flagOverrides collects the flags the user actually set.
func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		if flag == "port" {
			out[key] = c.Int(flag)
			continue
		}
		out[key] = c.String(flag)
	}
	if c.IsSet("metrics-addr") {
		out["metrics.enabled"] = true
	}
	return out
}

func loadConfig(c *cli.Context) (*config.ServerConfig, *confloader.Loader, error) {
	opts := []confloader.Option{confloader.WithOverrides(flagOverrides(c))}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func respConfig(cfg *config.ServerConfig) *redisserver.Config {
	return &redisserver.Config{
		Address:      cfg.ListenAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
		RequirePass:  cfg.Server.RequirePass,
	}
}

func storageConfig(cfg *config.ServerConfig, log *slog.Logger, reg *metric.Registry) storage.Config {
	sc := storage.DefaultConfig(cfg.Storage.Dir)
	sc.Snapshot = snapshot.Config{Dir: cfg.Storage.Dir, DBFilename: cfg.Storage.DBFilename}
	sc.SweepInterval = cfg.Storage.SweepInterval
	sc.Logger = log
	sc.Metrics = reg
	return sc
}

func run(ctx context.Context, c *cli.Context) error {
	cfg, loader, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	log.Info("starting memkv-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Short(),
		"config", config.Sanitize(cfg))

	var reg *metric.Registry
	if cfg.Metrics.Enabled {
		reg = metric.NewRegistry()
	}

	engine, err := storage.New(storageConfig(cfg, log, reg))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := engine.Recover(ctx); err != nil {
		engine.Close()
		return fmt.Errorf("storage recovery: %w", err)
	}

	sh := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(log))
	sh.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})

	if reg != nil {
		ms := metric.NewServer(cfg.Metrics.Addr, reg, log)
		if err := ms.Start(); err != nil {
			sh.Shutdown()
			return fmt.Errorf("start metrics server: %w", err)
		}
		sh.OnShutdown("metrics", ms.Stop)
	}

	master := replication.NewMaster(
		replication.WithMasterLogger(log),
		replication.WithMasterMetrics(reg),
	)
	srv := redisserver.New(respConfig(cfg), engine, master, log, redisserver.WithMetrics(reg))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := srv.Start(runCtx); err != nil {
		sh.Shutdown()
		return fmt.Errorf("start resp server: %w", err)
	}
	sh.OnShutdown("resp-server", srv.Shutdown)

	if cfg.Replication.ReplicaOf != "" {
		startReplica(runCtx, cfg, engine, srv, log, reg, sh)
	}

	if path := loader.FilePath(); path != "" {
		if err := watchConfig(runCtx, path, loader, log, sh); err != nil {
			log.Warn("config watcher disabled", "path", path, "error", err)
		}
	}

	if err := sh.Wait(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func startReplica(ctx context.Context, cfg *config.ServerConfig, engine *storage.Engine, srv *redisserver.Server, log *slog.Logger, reg *metric.Registry, sh *shutdown.Handler) {
	masterAddr, _ := replication.ParseReplicaOf(cfg.Replication.ReplicaOf)
	link := replication.NewReplica(replication.ReplicaConfig{
		MasterAddr:    masterAddr,
		MasterAuth:    cfg.Replication.MasterAuth,
		ListeningPort: cfg.AnnouncedPort(),
		Logger:        log,
		Metrics:       reg,
	}, engine, srv.Handler())
	srv.Handler().SetReplica(link)

	go func() {
		err := link.Run(ctx)
		switch {
		case err == nil, errors.Is(err, replication.ErrClosed), errors.Is(err, context.Canceled):
		default:
			log.Error("replication link down", "master", masterAddr, "error", err)
		}
	}()
	sh.OnShutdown("replica-link", func(context.Context) error {
		return link.Close()
	})
}

// watchConfig reloads the config file on change. Only the log level is
// applied live; other changes need a restart.
func watchConfig(ctx context.Context, path string, loader *confloader.Loader, log *slog.Logger, sh *shutdown.Handler) error {
	w, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	w.OnChange(func(string) {
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Error("config reload failed", "path", path, "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			log.Error("reloaded config is invalid", "path", path, "error", err)
			return
		}
		if err := logger.SetLevel(next.Log.Level); err != nil {
			log.Error("log level not applied", "level", next.Log.Level, "error", err)
			return
		}
		log.Info("config reloaded", "path", path, "log_level", logger.GetLevel())
	})
	go w.Run(ctx)
	sh.OnShutdown("config-watcher", func(context.Context) error {
		return w.Close()
	})
	return nil
}
