package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const periodColumns = `id, period_code, fiscal_year, period_month, start_date, end_date, is_closed, closed_at, created_at, updated_at`

type Repository interface {
	// FindCovering returns the period whose range contains day regardless of status.
	FindCovering(ctx context.Context, day time.Time) (Period, error)
	Get(ctx context.Context, id int64) (Period, error)
	// GetForShare locks the period row against concurrent close while a posting is in flight.
	GetForShare(ctx context.Context, id int64) (Period, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) FindCovering(ctx context.Context, day time.Time) (Period, error) {
	p, err := r.scan(r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM periods WHERE start_date <= $1 AND $1 < end_date ORDER BY start_date LIMIT 1 FOR SHARE`, day))
	if errors.Is(err, shared.ErrPeriodNotFound) {
		return Period{}, &shared.NoOpenPeriodError{Date: day}
	}
	return p, err
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1`, id))
}

func (r *repository) GetForShare(ctx context.Context, id int64) (Period, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1 FOR SHARE`, id))
}

func (r *repository) scan(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Code, &p.FiscalYear, &p.PeriodMonth, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}
