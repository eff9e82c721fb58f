package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetflow/internal/config"
	"github.com/roach88/sheetflow/internal/engine"
	"github.com/roach88/sheetflow/internal/logging"
	"github.com/roach88/sheetflow/internal/oplog"
	"github.com/roach88/sheetflow/internal/sheet"
	"github.com/roach88/sheetflow/internal/store"
)

// session is the per-invocation environment shared by commands that touch
// the database.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
}

// loadConfig resolves configuration and applies the --db override.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openSession loads configuration, builds the logger and opens the store.
// Failures are reported through f and returned as command errors.
func openSession(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger := logging.NewLogger(logging.Options{
		Level:     level,
		Format:    cfg.Log.Format,
		Writer:    cmd.ErrOrStderr(),
		Component: cmd.Name(),
	})

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("open database %s: %v", cfg.Database, err), nil)
	}
	f.VerboseLog("Using database %s", cfg.Database)
	return &session{cfg: cfg, logger: logger, store: st}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// operationLog returns a log that records to the store, primed with the
// persisted operations of sheetID so earlier operations can be reverted.
func (s *session) operationLog(ctx context.Context, sheetID string) (*oplog.Log, error) {
	log := oplog.New(
		oplog.WithRecorder(s.store),
		oplog.WithLogger(s.logger),
	)
	ops, err := s.store.ListOperations(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	log.Load(ops)
	return log, nil
}

// openSheet loads one worksheet with its operation history attached.
func (s *session) openSheet(ctx context.Context, path, sheetName string) (*sheet.Memory, error) {
	log, err := s.operationLog(ctx, sheetName)
	if err != nil {
		return nil, err
	}
	return sheet.LoadXLSX(path, sheetName, log)
}

// executor returns an executor persisting jobs to the store.
func (s *session) executor() *engine.Executor {
	return engine.New(
		engine.WithRecorder(s.store),
		engine.WithLogger(s.logger),
		engine.WithWorkers(s.cfg.Executor.Workers),
	)
}
