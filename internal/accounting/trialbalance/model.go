package trialbalance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Row is the per-period balance of one account.
type Row struct {
	PeriodID      int64
	AccountID     int64
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
	PeriodDebit   decimal.Decimal
	PeriodCredit  decimal.Decimal
	EndingDebit   decimal.Decimal
	EndingCredit  decimal.Decimal
	YTDDebit      decimal.Decimal
	YTDCredit     decimal.Decimal
	CalculatedAt  time.Time
}

// Opening is the carried-forward state a rollover writes into a target row.
type Opening struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
	// YTD baseline before the target period's own activity.
	YTDDebit  decimal.Decimal
	YTDCredit decimal.Decimal
}

// Net collapses opening plus period activity into a single nonzero ending side.
func Net(openingDebit, openingCredit, periodDebit, periodCredit decimal.Decimal) (endingDebit, endingCredit decimal.Decimal) {
	net := openingDebit.Add(periodDebit).Sub(openingCredit.Add(periodCredit))
	return shared.MaxZero(net), shared.MaxZero(net.Neg())
}

// NewRow returns an empty row for the pair.
func NewRow(periodID, accountID int64) Row {
	return Row{
		PeriodID:      periodID,
		AccountID:     accountID,
		OpeningDebit:  decimal.Zero,
		OpeningCredit: decimal.Zero,
		PeriodDebit:   decimal.Zero,
		PeriodCredit:  decimal.Zero,
		EndingDebit:   decimal.Zero,
		EndingCredit:  decimal.Zero,
		YTDDebit:      decimal.Zero,
		YTDCredit:     decimal.Zero,
	}
}

// Apply adds a delta to the period and ytd buckets and re-derives the ending.
func (r Row) Apply(debit, credit decimal.Decimal, at time.Time) Row {
	r.PeriodDebit = r.PeriodDebit.Add(debit)
	r.PeriodCredit = r.PeriodCredit.Add(credit)
	r.YTDDebit = r.YTDDebit.Add(debit)
	r.YTDCredit = r.YTDCredit.Add(credit)
	r.EndingDebit, r.EndingCredit = Net(r.OpeningDebit, r.OpeningCredit, r.PeriodDebit, r.PeriodCredit)
	r.CalculatedAt = at
	return r
}

// WithOpening overwrites the opening and ytd baseline while keeping period activity.
func (r Row) WithOpening(o Opening, at time.Time) Row {
	r.OpeningDebit = o.Debit
	r.OpeningCredit = o.Credit
	r.YTDDebit = o.YTDDebit.Add(r.PeriodDebit)
	r.YTDCredit = o.YTDCredit.Add(r.PeriodCredit)
	r.EndingDebit, r.EndingCredit = Net(r.OpeningDebit, r.OpeningCredit, r.PeriodDebit, r.PeriodCredit)
	r.CalculatedAt = at
	return r
}

// SignedEnding expresses the ending balance on the account's normal side.
func (r Row) SignedEnding(normal accounts.NormalBalance) decimal.Decimal {
	net := r.EndingDebit.Sub(r.EndingCredit)
	if normal == accounts.NormalCredit {
		return net.Neg()
	}
	return net
}

// Consistent reports whether ending matches the netting of opening and period buckets.
func (r Row) Consistent() bool {
	d, c := Net(r.OpeningDebit, r.OpeningCredit, r.PeriodDebit, r.PeriodCredit)
	return d.Equal(r.EndingDebit) && c.Equal(r.EndingCredit) && (r.EndingDebit.IsZero() || r.EndingCredit.IsZero())
}
