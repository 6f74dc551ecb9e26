package close

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads periods and flips their closed flag.
type Repository interface {
	Periods() periods.Repository
	// MarkClosed reports false when the period was already closed.
	MarkClosed(ctx context.Context, periodID, actorID int64, at time.Time) (bool, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) Periods() periods.Repository { return periods.NewRepository(r.db) }

func (r *repository) MarkClosed(ctx context.Context, periodID, actorID int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE periods SET is_closed = TRUE, closed_at = $2, closed_by = $3, updated_at = NOW()
WHERE id = $1 AND NOT is_closed`, periodID, at, actorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
