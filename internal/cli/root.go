// Package cli implements the syntra CLI commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/infektyd/syntra"
	"github.com/infektyd/syntra/claude"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the flags and the state shared by every command.
type app struct {
	configPath  string
	dbPath      string
	postgresDSN string
	format      string
	model       string
	verbose     bool

	logger   *zap.Logger
	bridge   *bridge
	cfg      syntra.Config
	journal  syntra.Journal
	pipeline *syntra.Pipeline
	engine   *syntra.RehearsalEngine

	// restored is set once memory was loaded; only then is it saved back.
	restored bool

	// newProvider builds the generation provider for commands that need one.
	newProvider func(model string) (syntra.Provider, error)
}

func defaultProvider(model string) (syntra.Provider, error) {
	return claude.New(claude.Options{Model: model})
}

// Execute builds the command tree, runs it and releases whatever the
// command opened, whether or not it succeeded.
func Execute() error {
	a := &app{newProvider: defaultProvider}
	return a.execute(newRootCmd(a))
}

func (a *app) execute(root *cobra.Command) error {
	err := root.Execute()
	if terr := a.teardown(context.Background()); terr != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", terr)
		err = errors.Join(err, terr)
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "syntra",
		Short: "Two-perspective reasoning with drift monitoring and dual-stream memory",
		Long: `syntra reads every question twice, once for its values and once for its
reasoning, combines both readings into one decision, checks that decision
against a reference baseline, and remembers the exchange.

State is kept in a journal: a local SQLite file by default, or PostgreSQL
with --postgres.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file (default: $SYNTRA_CONFIG)")
	flags.StringVarP(&a.dbPath, "db", "d", "", "SQLite journal path (default: $SYNTRA_DB or ~/.syntra/journal.db)")
	flags.StringVar(&a.postgresDSN, "postgres", "", "PostgreSQL DSN; uses a postgres journal instead of SQLite")
	flags.StringVarP(&a.format, "format", "f", "text", "Output format: text or json")
	flags.StringVar(&a.model, "model", claude.DefaultModel, "Model used for generation")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newAskCmd(a),
		newMemoryCmd(a),
		newRehearseCmd(a),
		newIntegrityCmd(a),
		newScheduleCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("unknown format %q", a.format)
	}

	if a.logger == nil {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if a.verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}
	a.bridge = newBridge(a.logger)

	cfg := syntra.DefaultConfig()
	path := a.configPath
	if path == "" {
		path = os.Getenv("SYNTRA_CONFIG")
	}
	if path != "" {
		loaded, err := syntra.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.cfg = cfg

	journal, err := a.openJournal(ctx)
	if err != nil {
		return err
	}
	a.journal = journal

	pipeline, err := syntra.NewPipelineFromConfig(cfg)
	if err != nil {
		return err
	}
	a.pipeline = pipeline
	pipeline.DriftMonitor().WithJournal(journal)

	traces, err := journal.LoadTraces(ctx)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}
	pipeline.Memory().Restore(traces)
	a.restored = true
	a.logger.Debug("memory restored", zap.Int("traces", len(traces)))

	a.engine = syntra.NewRehearsalEngine(pipeline.Memory(), cfg.Rehearsal).WithJournal(journal)
	return nil
}

func (a *app) openJournal(ctx context.Context) (syntra.Journal, error) {
	if a.postgresDSN != "" {
		db, err := sqlx.ConnectContext(ctx, "postgres", a.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		j, err := syntra.NewSoyJournal(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := j.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return j, nil
	}
	return syntra.NewSQLiteJournal(a.journalPath())
}

func (a *app) journalPath() string {
	if a.dbPath != "" {
		return a.dbPath
	}
	if env := os.Getenv("SYNTRA_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".syntra", "journal.db")
}

// teardown saves the memory snapshot and releases the journal. It is
// safe to call more than once.
func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.journal != nil {
		if a.restored {
			if err := a.journal.SaveTraces(ctx, a.pipeline.Memory().Snapshot()); err != nil {
				errs = append(errs, fmt.Errorf("save memory: %w", err))
			}
		}
		if err := a.journal.Close(); err != nil {
			errs = append(errs, err)
		}
		a.journal = nil
	}
	if a.bridge != nil {
		a.bridge.Close()
		a.bridge = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	a.restored = false
	return errors.Join(errs...)
}

func (a *app) provider() (syntra.Provider, error) {
	p, err := a.newProvider(a.model)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("provider ready", zap.String("provider", p.Name()))
	return p, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
