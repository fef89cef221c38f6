package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kartikbazzad/bunbase/bunquery/internal/config"
	"github.com/kartikbazzad/bunbase/bunquery/internal/eval"
	"github.com/kartikbazzad/bunbase/bunquery/internal/logger"
	"github.com/kartikbazzad/bunbase/bunquery/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunquery/internal/parser"
	"github.com/kartikbazzad/bunbase/bunquery/internal/server"
	"github.com/kartikbazzad/bunbase/bunquery/internal/storage"
)

type serveFlags struct {
	configFile     string
	addr           string
	metricsAddr    string
	defaultDB      string
	maxConnections int
	maxFrameSize   string
	backend        string
	dataPath       string
	logLevel       string
	logFormat      string
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.EnvPrefix, f.configFile)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configFile, "config", "", "Path to config file (optional)")
	fl.StringVar(&f.addr, "addr", "", "TCP listen address")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "HTTP address for /metrics (empty disables)")
	fl.StringVar(&f.defaultDB, "default-db", "", "Database used when a query names none")
	fl.IntVar(&f.maxConnections, "max-connections", 0, "Concurrent connection cap (0 = unlimited)")
	fl.StringVar(&f.maxFrameSize, "max-frame-size", "", "Largest accepted payload, e.g. 16MiB (0 = unlimited)")
	fl.StringVar(&f.backend, "storage", "", "Storage backend: memory or sqlite")
	fl.StringVar(&f.dataPath, "data", "", "SQLite database file")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("default-db") {
		cfg.DefaultDB = f.defaultDB
	}
	if changed("max-connections") {
		cfg.MaxConnections = f.maxConnections
	}
	if changed("max-frame-size") {
		n, err := humanize.ParseBytes(f.maxFrameSize)
		if err != nil {
			return pkgerrors.Wrap(err, "--max-frame-size")
		}
		if n > math.MaxUint32 {
			return pkgerrors.Errorf("--max-frame-size %s exceeds %s", f.maxFrameSize, humanize.IBytes(math.MaxUint32))
		}
		cfg.MaxFrameSize = uint32(n)
	}
	if changed("storage") {
		cfg.Storage.Backend = f.backend
	}
	if changed("data") {
		cfg.Storage.Path = f.dataPath
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return nil
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	backend, err := openBackend(parent, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Addr:           cfg.Addr,
		MaxConnections: cfg.MaxConnections,
		MaxFrameSize:   cfg.MaxFrameSize,
	}, backend, parser.New(), func(b storage.Backend) server.Evaluator {
		return eval.New(b, cfg.DefaultDB)
	}, logger.Component("server"))

	log.Info("starting bunquery",
		"addr", cfg.Addr,
		"storage", cfg.Storage.Backend,
		"default_db", cfg.DefaultDB,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return pkgerrors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("bunquery stopped")
	return err
}

// openBackend opens the configured storage and makes sure the default
// database exists.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "sqlite":
		lite, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "open storage %s", cfg.Storage.Path)
		}
		backend = lite
	default:
		backend = storage.NewMemory()
	}

	if cfg.DefaultDB != "" {
		err := backend.CreateDatabase(ctx, cfg.DefaultDB)
		if err != nil && !errors.Is(err, storage.ErrDatabaseExists) {
			backend.Close()
			return nil, pkgerrors.Wrapf(err, "create default database %q", cfg.DefaultDB)
		}
	}
	return backend, nil
}
