package trialbalance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const rowColumns = `period_id, coa_id, opening_debit, opening_credit, period_debit, period_credit,
	ending_debit, ending_credit, ytd_debit, ytd_credit, calculated_at`

// Repository persists trial balance rows. Every mutation is a single statement so
// concurrent postings against one account never lose an increment.
type Repository interface {
	ApplyDelta(ctx context.Context, periodID, accountID int64, debit, credit decimal.Decimal) error
	// SetOpening reports whether the stored row changed.
	SetOpening(ctx context.Context, periodID, accountID int64, opening Opening) (bool, error)
	Get(ctx context.Context, periodID, accountID int64) (Row, bool, error)
	ListByPeriod(ctx context.Context, periodID int64) ([]Row, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) ApplyDelta(ctx context.Context, periodID, accountID int64, debit, credit decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `INSERT INTO trial_balances (period_id, coa_id, period_debit, period_credit, ytd_debit, ytd_credit,
	ending_debit, ending_credit, calculated_at)
VALUES ($1, $2, $3::numeric, $4::numeric, $3::numeric, $4::numeric,
	GREATEST($3::numeric - $4::numeric, 0), GREATEST($4::numeric - $3::numeric, 0), NOW())
ON CONFLICT (period_id, coa_id) DO UPDATE SET
	period_debit = trial_balances.period_debit + EXCLUDED.period_debit,
	period_credit = trial_balances.period_credit + EXCLUDED.period_credit,
	ytd_debit = trial_balances.ytd_debit + EXCLUDED.ytd_debit,
	ytd_credit = trial_balances.ytd_credit + EXCLUDED.ytd_credit,
	ending_debit = GREATEST(
		(trial_balances.opening_debit + trial_balances.period_debit + EXCLUDED.period_debit)
		- (trial_balances.opening_credit + trial_balances.period_credit + EXCLUDED.period_credit), 0),
	ending_credit = GREATEST(
		(trial_balances.opening_credit + trial_balances.period_credit + EXCLUDED.period_credit)
		- (trial_balances.opening_debit + trial_balances.period_debit + EXCLUDED.period_debit), 0),
	calculated_at = NOW()`, periodID, accountID, debit, credit)
	return err
}

func (r *repository) SetOpening(ctx context.Context, periodID, accountID int64, o Opening) (bool, error) {
	tag, err := r.db.Exec(ctx, `INSERT INTO trial_balances (period_id, coa_id, opening_debit, opening_credit, ytd_debit, ytd_credit,
	ending_debit, ending_credit, calculated_at)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric,
	GREATEST($3::numeric - $4::numeric, 0), GREATEST($4::numeric - $3::numeric, 0), NOW())
ON CONFLICT (period_id, coa_id) DO UPDATE SET
	opening_debit = EXCLUDED.opening_debit,
	opening_credit = EXCLUDED.opening_credit,
	ytd_debit = EXCLUDED.ytd_debit + trial_balances.period_debit,
	ytd_credit = EXCLUDED.ytd_credit + trial_balances.period_credit,
	ending_debit = GREATEST(
		(EXCLUDED.opening_debit + trial_balances.period_debit) - (EXCLUDED.opening_credit + trial_balances.period_credit), 0),
	ending_credit = GREATEST(
		(EXCLUDED.opening_credit + trial_balances.period_credit) - (EXCLUDED.opening_debit + trial_balances.period_debit), 0),
	calculated_at = NOW()
WHERE (trial_balances.opening_debit, trial_balances.opening_credit,
		trial_balances.ytd_debit - trial_balances.period_debit, trial_balances.ytd_credit - trial_balances.period_credit)
	IS DISTINCT FROM (EXCLUDED.opening_debit, EXCLUDED.opening_credit, EXCLUDED.ytd_debit, EXCLUDED.ytd_credit)`,
		periodID, accountID, o.Debit, o.Credit, o.YTDDebit, o.YTDCredit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) Get(ctx context.Context, periodID, accountID int64) (Row, bool, error) {
	row, err := scanRow(r.db.QueryRow(ctx, `SELECT `+rowColumns+` FROM trial_balances WHERE period_id=$1 AND coa_id=$2`, periodID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return NewRow(periodID, accountID), false, nil
	}
	if err != nil {
		return Row{}, false, err
	}
	return row, true, nil
}

func (r *repository) ListByPeriod(ctx context.Context, periodID int64) ([]Row, error) {
	rows, err := r.db.Query(ctx, `SELECT `+rowColumns+` FROM trial_balances WHERE period_id=$1 ORDER BY coa_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.PeriodID, &r.AccountID, &r.OpeningDebit, &r.OpeningCredit, &r.PeriodDebit, &r.PeriodCredit,
		&r.EndingDebit, &r.EndingCredit, &r.YTDDebit, &r.YTDCredit, &r.CalculatedAt)
	return r, err
}

type reader struct {
	db db.DBTX
}

// NewReader builds the report reader over a pool or transaction.
func NewReader(conn db.DBTX) Reader {
	return reader{db: conn}
}

func (r reader) Periods() periods.Repository   { return periods.NewRepository(r.db) }
func (r reader) Accounts() accounts.Repository { return accounts.NewRepository(r.db) }
func (r reader) TrialBalances() Repository     { return NewRepository(r.db) }
