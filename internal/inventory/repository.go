package inventory

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads inventory cards maintained by the stock module.
type Repository interface {
	// LatestCards returns, per product, the last card of the warehouse posted before cutoff.
	LatestCards(ctx context.Context, warehouseID int64, cutoff time.Time) ([]CardBalance, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) LatestCards(ctx context.Context, warehouseID int64, cutoff time.Time) ([]CardBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT ON (product_id) product_id, posted_at, balance_qty, balance_cost
FROM inventory_cards
WHERE warehouse_id = $1 AND posted_at < $2
ORDER BY product_id, posted_at DESC, id DESC`, warehouseID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CardBalance
	for rows.Next() {
		var c CardBalance
		if err := rows.Scan(&c.ProductID, &c.PostedAt, &c.BalanceQty, &c.BalanceCost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
