// Package cli implements the odyssey command tree.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	periodclose "github.com/odyssey-erp/odyssey-ledger/internal/close"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// PeriodCloser closes a period after its checklist passes.
type PeriodCloser interface {
	Close(ctx context.Context, periodID int64, opts periodclose.Options) (periodclose.Run, error)
}

// LedgerOps is what the synchronous ledger commands run against.
type LedgerOps struct {
	Rollover  jobs.RolloverService
	Reconcile jobs.ReconcileService
	Integrity jobs.IntegrityChecker
	Close     PeriodCloser
}

// Opener connects the ledger services. The returned func releases connections.
type Opener func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (LedgerOps, func(), error)

// Options customise the root command; zero values select the process defaults.
type Options struct {
	Open   Opener
	Config func() (*app.Config, error)
	Stdout io.Writer
	Stderr io.Writer
}

// NewRootCommand builds the odyssey command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Open == nil {
		opts.Open = openLedger
	}
	if opts.Config == nil {
		opts.Config = app.LoadConfig
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	root := &cobra.Command{
		Use:           "odyssey",
		Short:         "Odyssey ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newRolloverCommand(opts),
		newReconcileCommand(opts),
		newIntegrityCommand(opts),
		newCloseCommand(opts),
		newJobsCommand(opts),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand(Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		if code, ok := exitCode(err); ok {
			return code
		}
		root.PrintErrln("odyssey:", err)
		return 1
	}
	return 0
}

func loadRuntime(opts Options, component string) (*app.Config, *slog.Logger, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg, component), nil
}

func openLedger(ctx context.Context, cfg *app.Config, logger *slog.Logger) (LedgerOps, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return LedgerOps{}, nil, err
	}
	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return LedgerOps{}, nil, err
	}
	ledger := app.NewLedger(cfg, pool, rdb, nil, logger)
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
		pool.Close()
	}
	return LedgerOps{
		Rollover:  ledger.Rollover,
		Reconcile: ledger.Reconcile,
		Integrity: ledger.Integrity,
		Close:     ledger.Close,
	}, closeFn, nil
}

// exitError carries a non-default exit code for results that are not failures of the command itself.
type exitError struct {
	code int
}

func (e exitError) Error() string { return "exit status" }

func exitCode(err error) (int, bool) {
	var e exitError
	if errors.As(err, &e) {
		return e.code, true
	}
	return 0, false
}
