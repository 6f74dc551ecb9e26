package integrity

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/glsummary"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) TrialBalances() trialbalance.Repository { return trialbalance.NewRepository(r.db) }
func (r *repository) GLSummaries() glsummary.Repository      { return glsummary.NewRepository(r.db) }

func (r *repository) JournalTotals(ctx context.Context, periodID int64) ([]JournalTotal, error) {
	rows, err := r.db.Query(ctx, `SELECT j.id, j.ledger_number,
	COALESCE(SUM(l.debit_amount), 0), COALESCE(SUM(l.credit_amount), 0)
FROM journals j
LEFT JOIN journal_lines l ON l.journal_id = j.id
WHERE j.period_id = $1 AND j.status = $2
GROUP BY j.id, j.ledger_number
ORDER BY j.id`, periodID, journals.StatusPosted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JournalTotal
	for rows.Next() {
		var t JournalTotal
		if err := rows.Scan(&t.JournalID, &t.LedgerNumber, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) LineTotals(ctx context.Context, periodID int64) (map[int64][2]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT l.coa_id, SUM(l.debit_amount), SUM(l.credit_amount)
FROM journal_lines l
JOIN journals j ON j.id = l.journal_id
WHERE j.period_id = $1 AND j.status = $2
GROUP BY l.coa_id`, periodID, journals.StatusPosted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][2]decimal.Decimal)
	for rows.Next() {
		var (
			id            int64
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&id, &debit, &credit); err != nil {
			return nil, err
		}
		out[id] = [2]decimal.Decimal{debit, credit}
	}
	return out, rows.Err()
}
