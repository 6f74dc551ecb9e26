package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconcile"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/rollover"
	periodclose "github.com/odyssey-erp/odyssey-ledger/internal/close"
)

// Exit code for runs that completed but found problems the operator must look at.
const exitFindings = 10

func newRolloverCommand(opts Options) *cobra.Command {
	var force, jsonOutput bool
	var actor int64
	cmd := &cobra.Command{
		Use:   "rollover FROM_PERIOD_ID TO_PERIOD_ID",
		Short: "Carry ending balances of one period into the next",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := parsePeriodArg(args[0])
			if err != nil {
				return err
			}
			toID, err := parsePeriodArg(args[1])
			if err != nil {
				return err
			}
			return withLedger(cmd.Context(), opts, func(ops LedgerOps) error {
				report, err := ops.Rollover.Rollover(cmd.Context(), fromID, toID, rollover.Options{Force: force, ActorID: actor})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), jsonOutput, report, func(w io.Writer) { renderRollover(w, report) })
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "allow rolling over from a period that is still open")
	cmd.Flags().Int64Var(&actor, "actor", 0, "user id recorded in the audit log")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newReconcileCommand(opts Options) *cobra.Command {
	var jsonOutput bool
	var actor int64
	cmd := &cobra.Command{
		Use:   "reconcile PERIOD_ID",
		Short: "Reconcile bound control accounts against their sub-ledgers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			periodID, err := parsePeriodArg(args[0])
			if err != nil {
				return err
			}
			return withLedger(cmd.Context(), opts, func(ops LedgerOps) error {
				result, err := ops.Reconcile.Reconcile(cmd.Context(), periodID, reconcile.Options{ActorID: actor})
				if err != nil {
					return err
				}
				if err := render(cmd.OutOrStdout(), jsonOutput, result, func(w io.Writer) { renderReconcile(w, result) }); err != nil {
					return err
				}
				if result.Failed > 0 {
					return exitError{code: exitFindings}
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&actor, "actor", 0, "user id recorded on adjustment journals")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}

func newIntegrityCommand(opts Options) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "integrity PERIOD_ID",
		Short: "Cross-check journals, trial balance and GL summary of a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			periodID, err := parsePeriodArg(args[0])
			if err != nil {
				return err
			}
			return withLedger(cmd.Context(), opts, func(ops LedgerOps) error {
				report, err := ops.Integrity.Check(cmd.Context(), periodID)
				if err != nil {
					return err
				}
				if err := render(cmd.OutOrStdout(), jsonOutput, report, func(w io.Writer) { renderIntegrity(w, report) }); err != nil {
					return err
				}
				if !report.OK() {
					return exitError{code: exitFindings}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newCloseCommand(opts Options) *cobra.Command {
	var jsonOutput bool
	var actor int64
	cmd := &cobra.Command{
		Use:   "close PERIOD_ID",
		Short: "Reconcile, verify and close a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			periodID, err := parsePeriodArg(args[0])
			if err != nil {
				return err
			}
			return withLedger(cmd.Context(), opts, func(ops LedgerOps) error {
				run, closeErr := ops.Close.Close(cmd.Context(), periodID, periodclose.Options{ActorID: actor})
				if closeErr != nil && !errors.Is(closeErr, periodclose.ErrChecklistIncomplete) {
					return closeErr
				}
				if err := render(cmd.OutOrStdout(), jsonOutput, run, func(w io.Writer) { renderClose(w, run) }); err != nil {
					return err
				}
				if closeErr != nil {
					return exitError{code: exitFindings}
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&actor, "actor", 0, "user id recorded in the audit log")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run as JSON")
	return cmd
}

func withLedger(ctx context.Context, opts Options, fn func(LedgerOps) error) error {
	cfg, logger, err := loadRuntime(opts, "cli")
	if err != nil {
		return err
	}
	ops, closeFn, err := opts.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ops)
}

func parsePeriodArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid period id %q", raw)
	}
	return id, nil
}

func render(out io.Writer, jsonOutput bool, v any, human func(io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(out)
	return nil
}

func renderRollover(out io.Writer, r rollover.Report) {
	_, _ = fmt.Fprintf(out, "Rollover %d -> %d", r.FromPeriodID, r.ToPeriodID)
	if r.Forced {
		_, _ = fmt.Fprint(out, " (forced)")
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "accounts scanned: %d, rows changed: %d\n", r.AccountsScanned, r.RowsChanged)
	_, _ = fmt.Fprintf(out, "opening carried: debit %s, credit %s\n", r.OpeningDebit.StringFixed(2), r.OpeningCredit.StringFixed(2))
}

func renderReconcile(out io.Writer, r reconcile.Result) {
	_, _ = fmt.Fprintf(out, "Reconciliation for period %s\n", r.PeriodCode)
	if len(r.Items) == 0 {
		_, _ = fmt.Fprintln(out, "No bound control accounts.")
		return
	}
	for _, item := range r.Items {
		line := fmt.Sprintf(" - %s %-8s sub-ledger %s, GL %s, diff %s", item.AccountCode, item.Status,
			item.SubledgerValue.StringFixed(2), item.GLValue.StringFixed(2), item.Diff.StringFixed(2))
		if item.JournalID != 0 {
			line += fmt.Sprintf(", journal %d", item.JournalID)
		}
		if item.Error != "" {
			line += ": " + item.Error
		}
		_, _ = fmt.Fprintln(out, line)
	}
	_, _ = fmt.Fprintf(out, "%d adjustment(s), %d failure(s)\n", len(r.AdjustmentJournalIDs), r.Failed)
}

func renderIntegrity(out io.Writer, r integrity.Report) {
	_, _ = fmt.Fprintf(out, "Integrity check for period %d: %d journal(s), %d account(s)\n", r.PeriodID, r.JournalsChecked, r.AccountsChecked)
	if r.OK() {
		_, _ = fmt.Fprintln(out, "No issues found.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d issue(s):\n", len(r.Issues))
	for _, issue := range r.Issues {
		_, _ = fmt.Fprintf(out, " - %s: %s\n", issue.Kind, issue.Detail)
	}
}

func renderClose(out io.Writer, r periodclose.Run) {
	switch {
	case r.AlreadyClosed:
		_, _ = fmt.Fprintf(out, "Period %s is already closed.\n", r.PeriodCode)
		return
	case r.Closed:
		_, _ = fmt.Fprintf(out, "Period %s closed.\n", r.PeriodCode)
	default:
		_, _ = fmt.Fprintf(out, "Period %s remains open.\n", r.PeriodCode)
	}
	for _, item := range r.Checklist {
		_, _ = fmt.Fprintf(out, " [%s] %s: %s\n", item.Status, item.Label, item.Detail)
	}
}
