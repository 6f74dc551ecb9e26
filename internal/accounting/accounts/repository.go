package accounts

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const accountColumns = `id, code, name, type, normal_balance, posting_type, parent_id, is_active, created_at, updated_at`

// Repository reads the chart of accounts. The registry is maintained by admin tooling.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	ListPosting(ctx context.Context) ([]Account, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Account, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository binds the repository to a pool or an open transaction.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
}

func (r *repository) ListPosting(ctx context.Context) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE posting_type='POSTING' ORDER BY code`)
}

// GetMany returns the requested accounts keyed by id; missing ids are simply absent.
func (r *repository) GetMany(ctx context.Context, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		out[a.ID] = a
	}
	return out, nil
}

func (r *repository) query(ctx context.Context, sql string, args ...any) ([]Account, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.PostingType, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
