package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ScopeWarehouse prefixes valuation keys naming a single warehouse.
const ScopeWarehouse = "WAREHOUSE"

var (
	// ErrUnsupportedKey indicates a valuation key this provider cannot price.
	ErrUnsupportedKey = errors.New("inventory: unsupported valuation key")
)

// CardBalance is the running balance recorded on an inventory card after a movement.
type CardBalance struct {
	ProductID   int64
	PostedAt    time.Time
	BalanceQty  decimal.Decimal
	BalanceCost decimal.Decimal
}

// Value returns the moving-average value of stock.
func (c CardBalance) Value() decimal.Decimal {
	return c.BalanceQty.Mul(c.BalanceCost)
}

// WarehouseKey formats the valuation key for a warehouse.
func WarehouseKey(warehouseID int64) string {
	return fmt.Sprintf("%s:%d", ScopeWarehouse, warehouseID)
}

// ParseWarehouseKey extracts the warehouse id from a WAREHOUSE:<id> key.
func ParseWarehouseKey(key string) (int64, error) {
	scope, raw, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok || !strings.EqualFold(scope, ScopeWarehouse) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKey, key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKey, key)
	}
	return id, nil
}

// Valuate sums the latest card per product strictly before cutoff.
func Valuate(cards []CardBalance, cutoff time.Time) decimal.Decimal {
	latest := make(map[int64]CardBalance)
	for _, c := range cards {
		if !c.PostedAt.Before(cutoff) {
			continue
		}
		if prev, ok := latest[c.ProductID]; !ok || c.PostedAt.After(prev.PostedAt) {
			latest[c.ProductID] = c
		}
	}
	total := decimal.Zero
	for _, c := range latest {
		total = total.Add(c.Value())
	}
	return total.Round(2)
}
