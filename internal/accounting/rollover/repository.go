package rollover

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r txRepository) Periods() periods.Repository            { return periods.NewRepository(r.tx) }
func (r txRepository) Accounts() accounts.Repository          { return accounts.NewRepository(r.tx) }
func (r txRepository) TrialBalances() trialbalance.Repository { return trialbalance.NewRepository(r.tx) }
