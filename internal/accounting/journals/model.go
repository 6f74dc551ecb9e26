package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusVoid   Status = "VOID"
)

// ReferenceType classifies the business document behind a journal. It is part of the ledger number.
type ReferenceType string

const (
	RefGeneral    ReferenceType = "GENERAL"
	RefPayment    ReferenceType = "PAYMENT"
	RefReceipt    ReferenceType = "RECEIPT"
	RefPurchase   ReferenceType = "PURCHASE"
	RefSales      ReferenceType = "SALES"
	RefInventory  ReferenceType = "INVENTORY"
	RefAdjustment ReferenceType = "ADJUSTMENT"
)

// Journal is a posted (or voided) ledger entry with its lines.
type Journal struct {
	ID              int64
	LedgerNumber    string
	ReferenceNumber string
	ReferenceType   ReferenceType
	TransactionDate time.Time
	PostingDate     time.Time
	PeriodID        int64
	Status          Status
	Currency        string
	ExchangeRate    decimal.Decimal
	Memo            string
	SourceModule    string
	SourceID        uuid.UUID
	CreatedBy       int64
	PostedBy        int64
	PostedAt        time.Time
	VoidedBy        *int64
	VoidedAt        *time.Time
	VoidReason      string
	Lines           []Line
}

// Line stores the debit or credit amount of one account.
type Line struct {
	ID          int64
	JournalID   int64
	LineNumber  int
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	LocalAmount decimal.Decimal
	Description string
	ProjectID   *int64
	CustomerID  *int64
}

// Totals sums the debit and credit sides.
func (j Journal) Totals() (debit, credit decimal.Decimal) {
	return sumLines(j.Lines)
}

func sumLines(lines []Line) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// VoidRecord captures who voided a journal and why.
type VoidRecord struct {
	JournalID int64
	ActorID   int64
	Reason    string
	At        time.Time
}
