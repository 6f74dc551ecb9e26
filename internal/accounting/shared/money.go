package shared

import "github.com/shopspring/decimal"

// DefaultEpsilon is the balance tolerance of one hundredth of a currency unit.
var DefaultEpsilon = decimal.New(1, -2)

// Round2 rounds to the storage scale of amounts.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// WithinEpsilon reports whether |a-b| <= eps.
func WithinEpsilon(a, b, eps decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(eps)
}

// MaxZero clamps negative values to zero.
func MaxZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
