package glsummary

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is the daily roll-up of one account within a period. Balances are signed with
// debit positive.
type Row struct {
	AccountID        int64
	PeriodID         int64
	Date             time.Time
	OpeningBalance   decimal.Decimal
	DebitTotal       decimal.Decimal
	CreditTotal      decimal.Decimal
	ClosingBalance   decimal.Decimal
	TransactionCount int
}

// Seed starts a new day row whose opening is the closing of the latest earlier day.
func Seed(accountID, periodID int64, day time.Time, prior *Row) Row {
	opening := decimal.Zero
	if prior != nil {
		opening = prior.ClosingBalance
	}
	return Row{
		AccountID:      accountID,
		PeriodID:       periodID,
		Date:           day,
		OpeningBalance: opening,
		DebitTotal:     decimal.Zero,
		CreditTotal:    decimal.Zero,
		ClosingBalance: opening,
	}
}

// Apply increments the day's counters and recomputes closing.
func (r Row) Apply(debit, credit decimal.Decimal, count int) Row {
	r.DebitTotal = r.DebitTotal.Add(debit)
	r.CreditTotal = r.CreditTotal.Add(credit)
	r.TransactionCount += count
	r.ClosingBalance = r.OpeningBalance.Add(r.DebitTotal).Sub(r.CreditTotal)
	return r
}

// Shift moves both balances by delta; used on days after a backdated posting.
func (r Row) Shift(delta decimal.Decimal) Row {
	r.OpeningBalance = r.OpeningBalance.Add(delta)
	r.ClosingBalance = r.ClosingBalance.Add(delta)
	return r
}

// Totals sums debit and credit across day rows.
func Totals(rows []Row) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, r := range rows {
		debit = debit.Add(r.DebitTotal)
		credit = credit.Add(r.CreditTotal)
	}
	return debit, credit
}
