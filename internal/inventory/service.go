package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

// Valuator prices warehouse stock at a period end for sub-ledger reconciliation.
type Valuator struct {
	repo     Repository
	periods  periods.Repository
	boundary periods.DayBoundary
}

func NewValuator(repo Repository, periodRepo periods.Repository, boundary periods.DayBoundary) *Valuator {
	return &Valuator{repo: repo, periods: periodRepo, boundary: boundary}
}

// GetValuation returns the stock value of the warehouse named by key as of the end of the period.
func (v *Valuator) GetValuation(ctx context.Context, key string, periodID int64) (decimal.Decimal, error) {
	warehouseID, err := ParseWarehouseKey(key)
	if err != nil {
		return decimal.Zero, err
	}
	period, err := v.periods.Get(ctx, periodID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("inventory: period %d: %w", periodID, err)
	}
	cutoff := v.boundary.StartOf(period.EndDate)
	cards, err := v.repo.LatestCards(ctx, warehouseID, cutoff)
	if err != nil {
		return decimal.Zero, fmt.Errorf("inventory: cards for %s: %w", key, err)
	}
	return Valuate(cards, cutoff), nil
}
