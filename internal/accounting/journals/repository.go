package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/glsummary"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, id int64) (Journal, error)
	// NextLedgerSequence allocates the next number under prefix outside any posting
	// transaction. Numbers of failed postings are not reused.
	NextLedgerSequence(ctx context.Context, prefix string) (int64, error)
	// WithTx runs fn in one transaction; nothing fn wrote is visible when it returns an error.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the stores a posting touches inside its transaction.
type TxRepository interface {
	Periods() periods.Repository
	Accounts() accounts.Repository
	TrialBalances() trialbalance.Repository
	GLSummaries() glsummary.Repository

	InsertJournal(ctx context.Context, j *Journal) error
	GetJournalForUpdate(ctx context.Context, id int64) (Journal, error)
	MarkVoid(ctx context.Context, rec VoidRecord) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const journalColumns = `id, ledger_number, reference_number, reference_type, transaction_date, posting_date, period_id,
	status, currency, exchange_rate, memo, COALESCE(source_module, ''), COALESCE(source_id, '00000000-0000-0000-0000-000000000000'::uuid),
	created_by, posted_by, posted_at, voided_by, voided_at, COALESCE(void_reason, '')`

func (r *repository) Get(ctx context.Context, id int64) (Journal, error) {
	return getJournal(ctx, r.pool, `SELECT `+journalColumns+` FROM journals WHERE id=$1`, id)
}

func (r *repository) NextLedgerSequence(ctx context.Context, prefix string) (int64, error) {
	var next int64
	err := r.pool.QueryRow(ctx, `INSERT INTO ledger_sequences (prefix, last_value) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_value = ledger_sequences.last_value + 1
RETURNING last_value`, prefix).Scan(&next)
	if err != nil {
		return 0, db.Classify(err)
	}
	return next, nil
}

// WithTx runs postings at READ COMMITTED. Every aggregate increment is a single UPSERT, and
// the trial balance row of a (period, account) is written before its daily summary rows, so
// that row lock orders concurrent postings on the same account while others proceed.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Periods() periods.Repository            { return periods.NewRepository(r.tx) }
func (r *txRepository) Accounts() accounts.Repository          { return accounts.NewRepository(r.tx) }
func (r *txRepository) TrialBalances() trialbalance.Repository { return trialbalance.NewRepository(r.tx) }
func (r *txRepository) GLSummaries() glsummary.Repository      { return glsummary.NewRepository(r.tx) }

func (r *txRepository) InsertJournal(ctx context.Context, j *Journal) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (ledger_number, reference_number, reference_type, transaction_date, posting_date,
	period_id, status, currency, exchange_rate, memo, source_module, source_id, created_by, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
		j.LedgerNumber, j.ReferenceNumber, j.ReferenceType, j.TransactionDate, j.PostingDate,
		j.PeriodID, j.Status, j.Currency, j.ExchangeRate, j.Memo, nullString(j.SourceModule), nullUUID(j),
		j.CreatedBy, j.PostedBy, j.PostedAt).Scan(&j.ID)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i := range j.Lines {
		line := &j.Lines[i]
		line.JournalID = j.ID
		batch.Queue(`INSERT INTO journal_lines (journal_id, line_number, coa_id, debit_amount, credit_amount, local_amount,
	description, project_id, customer_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
			j.ID, line.LineNumber, line.AccountID, line.Debit, line.Credit, line.LocalAmount,
			line.Description, line.ProjectID, line.CustomerID).QueryRow(func(row pgx.Row) error {
			return row.Scan(&line.ID)
		})
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, id int64) (Journal, error) {
	return getJournal(ctx, r.tx, `SELECT `+journalColumns+` FROM journals WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) MarkVoid(ctx context.Context, rec VoidRecord) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$2, voided_by=$3, voided_at=$4, void_reason=$5, updated_at=NOW()
WHERE id=$1 AND status=$6`, rec.JournalID, StatusVoid, rec.ActorID, rec.At, rec.Reason, StatusPosted)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func getJournal(ctx context.Context, conn db.DBTX, query string, id int64) (Journal, error) {
	var j Journal
	err := conn.QueryRow(ctx, query, id).Scan(&j.ID, &j.LedgerNumber, &j.ReferenceNumber, &j.ReferenceType,
		&j.TransactionDate, &j.PostingDate, &j.PeriodID, &j.Status, &j.Currency, &j.ExchangeRate, &j.Memo,
		&j.SourceModule, &j.SourceID, &j.CreatedBy, &j.PostedBy, &j.PostedAt, &j.VoidedBy, &j.VoidedAt, &j.VoidReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}
	rows, err := conn.Query(ctx, `SELECT id, journal_id, line_number, coa_id, debit_amount, credit_amount, local_amount,
	COALESCE(description, ''), project_id, customer_id
FROM journal_lines WHERE journal_id=$1 ORDER BY line_number`, id)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.JournalID, &l.LineNumber, &l.AccountID, &l.Debit, &l.Credit, &l.LocalAmount,
			&l.Description, &l.ProjectID, &l.CustomerID); err != nil {
			return Journal{}, err
		}
		j.Lines = append(j.Lines, l)
	}
	return j, rows.Err()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullUUID(j *Journal) any {
	if j.SourceModule == "" {
		return nil
	}
	return j.SourceID
}
