package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// GRNLine is one received product line.
type GRNLine struct {
	ProductID int64
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
}

// GRNPostedEvent is raised when a goods receipt is posted to stock.
type GRNPostedEvent struct {
	ID          int64
	Number      string
	WarehouseID int64
	ReceivedAt  time.Time
	Lines       []GRNLine
}

// APInvoicePostedEvent is raised when a supplier invoice is approved for payment.
type APInvoicePostedEvent struct {
	ID       int64
	Number   string
	GRNID    int64
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	PostedAt time.Time
}

// APPaymentPostedEvent is raised when a supplier payment leaves the bank.
type APPaymentPostedEvent struct {
	ID     int64
	Number string
	Amount decimal.Decimal
	PaidAt time.Time
}

// InventoryAdjustmentPostedEvent is raised for stock count corrections. Qty is signed.
type InventoryAdjustmentPostedEvent struct {
	Code        string
	ProductID   int64
	WarehouseID int64
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	PostedAt    time.Time
}
