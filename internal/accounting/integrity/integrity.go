// Package integrity cross-checks journals, trial balances and GL summaries of a period.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/glsummary"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
)

// JournalTotal is the line sum of one posted journal.
type JournalTotal struct {
	JournalID    int64
	LedgerNumber string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

type Repository interface {
	TrialBalances() trialbalance.Repository
	GLSummaries() glsummary.Repository
	// JournalTotals lists posted journals of the period with their line sums.
	JournalTotals(ctx context.Context, periodID int64) ([]JournalTotal, error)
	// LineTotals sums posted journal lines per account.
	LineTotals(ctx context.Context, periodID int64) (map[int64][2]decimal.Decimal, error)
}

// Kind classifies an integrity finding.
type Kind string

const (
	KindUnbalancedJournal Kind = "unbalanced_journal"
	KindTrialBalanceRow   Kind = "trial_balance_inconsistent"
	KindLinesVsTB         Kind = "lines_trial_balance_mismatch"
	KindGLVsTB            Kind = "gl_trial_balance_mismatch"
	KindGLChain           Kind = "gl_chain_broken"
)

// Issue is one finding.
type Issue struct {
	Kind      Kind   `json:"kind"`
	AccountID int64  `json:"account_id,omitempty"`
	JournalID int64  `json:"journal_id,omitempty"`
	Detail    string `json:"detail"`
}

// Report is the outcome of Check.
type Report struct {
	PeriodID        int64   `json:"period_id"`
	JournalsChecked int     `json:"journals_checked"`
	AccountsChecked int     `json:"accounts_checked"`
	Issues          []Issue `json:"issues"`
}

// OK reports whether no issue was found.
func (r Report) OK() bool { return len(r.Issues) == 0 }

type Checker struct {
	repo    Repository
	epsilon decimal.Decimal
	logger  *slog.Logger
}

func NewChecker(repo Repository, epsilon decimal.Decimal, logger *slog.Logger) *Checker {
	if epsilon.IsZero() {
		epsilon = shared.DefaultEpsilon
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{repo: repo, epsilon: epsilon, logger: logger}
}

// Check never repairs anything; it only reports.
func (c *Checker) Check(ctx context.Context, periodID int64) (Report, error) {
	report := Report{PeriodID: periodID, Issues: []Issue{}}

	totals, err := c.repo.JournalTotals(ctx, periodID)
	if err != nil {
		return Report{}, fmt.Errorf("integrity journals: %w", err)
	}
	report.JournalsChecked = len(totals)
	for _, t := range totals {
		if !shared.WithinEpsilon(t.Debit, t.Credit, c.epsilon) {
			report.Issues = append(report.Issues, Issue{Kind: KindUnbalancedJournal, JournalID: t.JournalID,
				Detail: fmt.Sprintf("%s debit=%s credit=%s", t.LedgerNumber, t.Debit.StringFixed(2), t.Credit.StringFixed(2))})
		}
	}

	rows, err := c.repo.TrialBalances().ListByPeriod(ctx, periodID)
	if err != nil {
		return Report{}, fmt.Errorf("integrity trial balance: %w", err)
	}
	lines, err := c.repo.LineTotals(ctx, periodID)
	if err != nil {
		return Report{}, fmt.Errorf("integrity lines: %w", err)
	}
	gl, err := c.repo.GLSummaries().SumByPeriod(ctx, periodID)
	if err != nil {
		return Report{}, fmt.Errorf("integrity gl summary: %w", err)
	}

	tb := make(map[int64]trialbalance.Row, len(rows))
	ids := make(map[int64]struct{})
	for _, r := range rows {
		tb[r.AccountID] = r
		ids[r.AccountID] = struct{}{}
		if !r.Consistent() {
			report.Issues = append(report.Issues, Issue{Kind: KindTrialBalanceRow, AccountID: r.AccountID,
				Detail: fmt.Sprintf("ending debit=%s credit=%s", r.EndingDebit.StringFixed(2), r.EndingCredit.StringFixed(2))})
		}
	}
	for id := range lines {
		ids[id] = struct{}{}
	}
	for id := range gl {
		ids[id] = struct{}{}
	}
	accountIDs := make([]int64, 0, len(ids))
	for id := range ids {
		accountIDs = append(accountIDs, id)
	}
	sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i] < accountIDs[j] })
	report.AccountsChecked = len(accountIDs)

	for _, id := range accountIDs {
		row, ok := tb[id]
		if !ok {
			row = trialbalance.NewRow(periodID, id)
		}
		if issue, bad := compare(KindLinesVsTB, id, lines[id], row); bad {
			report.Issues = append(report.Issues, issue)
		}
		if issue, bad := compare(KindGLVsTB, id, gl[id], row); bad {
			report.Issues = append(report.Issues, issue)
		}
		if _, ok := gl[id]; ok {
			chain, err := c.checkChain(ctx, id, periodID)
			if err != nil {
				return Report{}, err
			}
			report.Issues = append(report.Issues, chain...)
		}
	}

	level := slog.LevelInfo
	if !report.OK() {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "integrity check completed",
		slog.Int64("period_id", periodID),
		slog.Int("journals", report.JournalsChecked),
		slog.Int("accounts", report.AccountsChecked),
		slog.Int("issues", len(report.Issues)))
	return report, nil
}

func compare(kind Kind, accountID int64, sums [2]decimal.Decimal, row trialbalance.Row) (Issue, bool) {
	debit, credit := sums[0], sums[1]
	if debit.Equal(row.PeriodDebit) && credit.Equal(row.PeriodCredit) {
		return Issue{}, false
	}
	return Issue{Kind: kind, AccountID: accountID, Detail: fmt.Sprintf("debit=%s/%s credit=%s/%s",
		debit.StringFixed(2), row.PeriodDebit.StringFixed(2), credit.StringFixed(2), row.PeriodCredit.StringFixed(2))}, true
}

func (c *Checker) checkChain(ctx context.Context, accountID, periodID int64) ([]Issue, error) {
	rows, err := c.repo.GLSummaries().ListByAccount(ctx, accountID, periodID)
	if err != nil {
		return nil, fmt.Errorf("integrity gl rows %d: %w", accountID, err)
	}
	var issues []Issue
	prev := decimal.Zero
	for _, r := range rows {
		if !r.OpeningBalance.Equal(prev) {
			issues = append(issues, Issue{Kind: KindGLChain, AccountID: accountID,
				Detail: fmt.Sprintf("%s opening=%s expected=%s", r.Date.Format("2006-01-02"), r.OpeningBalance.StringFixed(2), prev.StringFixed(2))})
		}
		if want := r.OpeningBalance.Add(r.DebitTotal).Sub(r.CreditTotal); !r.ClosingBalance.Equal(want) {
			issues = append(issues, Issue{Kind: KindGLChain, AccountID: accountID,
				Detail: fmt.Sprintf("%s closing=%s expected=%s", r.Date.Format("2006-01-02"), r.ClosingBalance.StringFixed(2), want.StringFixed(2))})
		}
		prev = r.ClosingBalance
	}
	return issues, nil
}
