package mappings

import "time"

// Well-known system account keys used by workflow postings and reconciliation.
const (
	KeyInventoryAccount           = "INVENTORY_ACCOUNT"
	KeyGRNIClearingAccount        = "GRNI_ACCOUNT"
	KeyAccountsPayable            = "AP_ACCOUNT"
	KeyPurchaseTaxAccount         = "PURCHASE_TAX_ACCOUNT"
	KeyCashAccount                = "CASH_ACCOUNT"
	KeyInventoryAdjustmentAccount = "INVENTORY_ADJUSTMENT_ACCOUNT"
)

// SystemAccountMapping links a configuration key to a ledger account.
type SystemAccountMapping struct {
	Key       string
	AccountID int64
	UpdatedAt time.Time
}

// SubledgerBinding ties a sub-ledger valuation key (for example WAREHOUSE:3) to the GL
// account it should reconcile against.
type SubledgerBinding struct {
	Key       string
	AccountID int64
}
