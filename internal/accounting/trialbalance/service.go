package trialbalance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

// Reader exposes the stores the report reads.
type Reader interface {
	Periods() periods.Repository
	Accounts() accounts.Repository
	TrialBalances() Repository
}

// ReportLine is one account of a trial balance report.
type ReportLine struct {
	AccountID     int64                  `json:"account_id"`
	AccountCode   string                 `json:"account_code"`
	AccountName   string                 `json:"account_name"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
	OpeningDebit  decimal.Decimal        `json:"opening_debit"`
	OpeningCredit decimal.Decimal        `json:"opening_credit"`
	PeriodDebit   decimal.Decimal        `json:"period_debit"`
	PeriodCredit  decimal.Decimal        `json:"period_credit"`
	EndingDebit   decimal.Decimal        `json:"ending_debit"`
	EndingCredit  decimal.Decimal        `json:"ending_credit"`
	YTDDebit      decimal.Decimal        `json:"ytd_debit"`
	YTDCredit     decimal.Decimal        `json:"ytd_credit"`
}

// Report is the trial balance of a period ordered by account code.
type Report struct {
	PeriodID    int64           `json:"period_id"`
	PeriodCode  string          `json:"period_code"`
	IsClosed    bool            `json:"is_closed"`
	Lines       []ReportLine    `json:"lines"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balanced    bool            `json:"balanced"`
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Report assembles the stored rows of a period. Totals are taken from the ending columns.
func (s *Service) Report(ctx context.Context, periodID int64) (Report, error) {
	period, err := s.reader.Periods().Get(ctx, periodID)
	if err != nil {
		return Report{}, err
	}
	rows, err := s.reader.TrialBalances().ListByPeriod(ctx, periodID)
	if err != nil {
		return Report{}, fmt.Errorf("list trial balance: %w", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AccountID)
	}
	accs, err := s.reader.Accounts().GetMany(ctx, ids)
	if err != nil {
		return Report{}, fmt.Errorf("load accounts: %w", err)
	}

	report := Report{
		PeriodID:    period.ID,
		PeriodCode:  period.Code,
		IsClosed:    period.IsClosed,
		Lines:       make([]ReportLine, 0, len(rows)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, r := range rows {
		acc := accs[r.AccountID]
		report.Lines = append(report.Lines, ReportLine{
			AccountID:     r.AccountID,
			AccountCode:   acc.Code,
			AccountName:   acc.Name,
			NormalBalance: acc.NormalBalance,
			OpeningDebit:  r.OpeningDebit,
			OpeningCredit: r.OpeningCredit,
			PeriodDebit:   r.PeriodDebit,
			PeriodCredit:  r.PeriodCredit,
			EndingDebit:   r.EndingDebit,
			EndingCredit:  r.EndingCredit,
			YTDDebit:      r.YTDDebit,
			YTDCredit:     r.YTDCredit,
		})
		report.TotalDebit = report.TotalDebit.Add(r.EndingDebit)
		report.TotalCredit = report.TotalCredit.Add(r.EndingCredit)
	}
	sort.Slice(report.Lines, func(i, j int) bool { return report.Lines[i].AccountCode < report.Lines[j].AccountCode })
	report.Balanced = report.TotalDebit.Equal(report.TotalCredit)
	return report, nil
}
