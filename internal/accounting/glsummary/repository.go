package glsummary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type Repository interface {
	// ApplyDelta upserts the day row and shifts every later day of the same account and
	// period by the net delta. count is +1 per posted line and -1 per voided line; day
	// rows whose count drops to zero are removed.
	ApplyDelta(ctx context.Context, accountID, periodID int64, day time.Time, debit, credit decimal.Decimal, count int) error
	ListByAccount(ctx context.Context, accountID, periodID int64) ([]Row, error)
	// SumByPeriod returns debit/credit totals per account for the period.
	SumByPeriod(ctx context.Context, periodID int64) (map[int64][2]decimal.Decimal, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) ApplyDelta(ctx context.Context, accountID, periodID int64, day time.Time, debit, credit decimal.Decimal, count int) error {
	if _, err := r.db.Exec(ctx, `INSERT INTO gl_summaries (coa_id, period_id, date, opening_balance, debit_total, credit_total,
	closing_balance, transaction_count)
SELECT $1, $2, $3::date, seed.balance, $4::numeric, $5::numeric, seed.balance + $4::numeric - $5::numeric, $6
FROM (SELECT COALESCE((
	SELECT closing_balance FROM gl_summaries
	WHERE coa_id = $1 AND period_id = $2 AND date <= $3::date - 1
	ORDER BY date DESC LIMIT 1), 0) AS balance) seed
ON CONFLICT (coa_id, period_id, date) DO UPDATE SET
	debit_total = gl_summaries.debit_total + EXCLUDED.debit_total,
	credit_total = gl_summaries.credit_total + EXCLUDED.credit_total,
	closing_balance = gl_summaries.opening_balance
		+ gl_summaries.debit_total + EXCLUDED.debit_total
		- gl_summaries.credit_total - EXCLUDED.credit_total,
	transaction_count = gl_summaries.transaction_count + EXCLUDED.transaction_count`,
		accountID, periodID, day, debit, credit, count); err != nil {
		return err
	}
	if delta := debit.Sub(credit); !delta.IsZero() {
		if _, err := r.db.Exec(ctx, `UPDATE gl_summaries
SET opening_balance = opening_balance + $4::numeric, closing_balance = closing_balance + $4::numeric
WHERE coa_id = $1 AND period_id = $2 AND date > $3::date`, accountID, periodID, day, delta); err != nil {
			return err
		}
	}
	if count < 0 {
		if _, err := r.db.Exec(ctx, `DELETE FROM gl_summaries
WHERE coa_id = $1 AND period_id = $2 AND date = $3::date AND transaction_count <= 0`, accountID, periodID, day); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID, periodID int64) ([]Row, error) {
	rows, err := r.db.Query(ctx, `SELECT coa_id, period_id, date, opening_balance, debit_total, credit_total, closing_balance, transaction_count
FROM gl_summaries WHERE coa_id = $1 AND period_id = $2 ORDER BY date`, accountID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.AccountID, &row.PeriodID, &row.Date, &row.OpeningBalance, &row.DebitTotal,
			&row.CreditTotal, &row.ClosingBalance, &row.TransactionCount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) SumByPeriod(ctx context.Context, periodID int64) (map[int64][2]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT coa_id, COALESCE(SUM(debit_total), 0), COALESCE(SUM(credit_total), 0)
FROM gl_summaries WHERE period_id = $1 GROUP BY coa_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][2]decimal.Decimal)
	for rows.Next() {
		var (
			accountID     int64
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&accountID, &debit, &credit); err != nil {
			return nil, err
		}
		out[accountID] = [2]decimal.Decimal{debit, credit}
	}
	return out, rows.Err()
}
