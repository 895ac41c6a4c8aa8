package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kittclouds/bookshelf/internal/config"
	"github.com/kittclouds/bookshelf/internal/importer"
	"github.com/kittclouds/bookshelf/internal/logger"
	"github.com/kittclouds/bookshelf/internal/metrics"
	"github.com/kittclouds/bookshelf/internal/printers"
	"github.com/kittclouds/bookshelf/internal/store"
)

// env is what a command needs at run time: configuration, a logger and the
// opened store.
type env struct {
	cfg     *config.Config
	log     logger.Logger
	store   *store.SQLiteStore
	printer *printers.Printer
}

// openEnv loads configuration and opens the store. When wait is set it
// blocks until the schema is ready and fails if the store is degraded.
func openEnv(ctx context.Context, cmd *cobra.Command, ro *rootOptions, wait bool) (*env, error) {
	format, err := printers.ParseFormat(ro.Output)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(ro.ConfigFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.File != "" {
		log.Debug("config loaded", logger.String("file", cfg.File))
	}

	scfg, err := cfg.Store()
	if err != nil {
		return nil, err
	}
	if scfg.Path != store.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(scfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	st, err := store.Open(ctx, scfg, log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, store: st, printer: &printers.Printer{Out: cmd.OutOrStdout(), Format: format}}

	if wait {
		if err := st.Ready(ctx); err != nil {
			e.close()
			return nil, err
		}
		if err := st.Degraded(); err != nil {
			e.close()
			return nil, err
		}
	}
	return e, nil
}

func (e *env) importer(m *metrics.Collector) *importer.Importer {
	return importer.New(e.store, e.log,
		importer.WithFolders(e.cfg.ImportFolders),
		importer.WithAutoLabels(e.cfg.ImportAutoLabels),
		importer.WithMetrics(m),
	)
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn("close store", logger.Error(err))
	}
	_ = e.log.Sync()
}
