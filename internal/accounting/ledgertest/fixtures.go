package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

// Account ids of the standard chart.
const (
	Cash                int64 = 1
	Receivable          int64 = 2
	WIP                 int64 = 3
	Inventory           int64 = 4
	Payable             int64 = 5
	Revenue             int64 = 6
	InventoryAdjustment int64 = 7
	AssetsHeader        int64 = 90
	Dormant             int64 = 91
)

// Period ids of the standard calendar.
const (
	Dec2023 int64 = 12
	Jan2024 int64 = 1
	Feb2024 int64 = 2
)

// Offset is the reporting-day offset used by fixtures.
const Offset = 7 * time.Hour

// Boundary returns the fixture day boundary.
func Boundary() periods.DayBoundary {
	return periods.NewDayBoundary(Offset)
}

// Standard loads a small chart of accounts, three monthly periods and the adjustment mapping.
func Standard() *Store {
	s := NewStore()
	s.AddAccount(accounts.Account{ID: AssetsHeader, Code: "1", Name: "Assets", Type: accounts.AccountTypeAsset, PostingType: accounts.PostingTypeHeader, IsActive: true})
	s.AddAccount(accounts.Account{ID: Cash, Code: "1-10001", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true})
	s.AddAccount(accounts.Account{ID: Receivable, Code: "1-10205", Name: "Receivable", Type: accounts.AccountTypeAsset, IsActive: true})
	s.AddAccount(accounts.Account{ID: WIP, Code: "1-10402", Name: "Work in Process", Type: accounts.AccountTypeAsset, IsActive: true})
	s.AddAccount(accounts.Account{ID: Inventory, Code: "1-10401", Name: "Inventory", Type: accounts.AccountTypeAsset, IsActive: true})
	s.AddAccount(accounts.Account{ID: Payable, Code: "2-20101", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, IsActive: true})
	s.AddAccount(accounts.Account{ID: Revenue, Code: "4-40001", Name: "Sales", Type: accounts.AccountTypeRevenue, IsActive: true})
	s.AddAccount(accounts.Account{ID: InventoryAdjustment, Code: "5-50900", Name: "Inventory Adjustment", Type: accounts.AccountTypeCOGS, IsActive: true})
	s.AddAccount(accounts.Account{ID: Dormant, Code: "1-19999", Name: "Dormant", Type: accounts.AccountTypeAsset, IsActive: false})

	s.AddPeriod(periods.Period{ID: Dec2023, Code: "2023-12", FiscalYear: 2023, PeriodMonth: 12,
		StartDate: Date(2023, 12, 1), EndDate: Date(2024, 1, 1), IsClosed: true})
	s.AddPeriod(periods.Period{ID: Jan2024, Code: "2024-01", FiscalYear: 2024, PeriodMonth: 1,
		StartDate: Date(2024, 1, 1), EndDate: Date(2024, 2, 1)})
	s.AddPeriod(periods.Period{ID: Feb2024, Code: "2024-02", FiscalYear: 2024, PeriodMonth: 2,
		StartDate: Date(2024, 2, 1), EndDate: Date(2024, 3, 1)})

	s.SetMapping(mappings.KeyInventoryAdjustmentAccount, InventoryAdjustment)
	return s
}

// Date is a civil date at midnight UTC.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At is an instant on the given reporting day (noon local time).
func At(y int, m time.Month, d int) time.Time {
	return Boundary().StartOf(Date(y, m, d)).Add(12 * time.Hour)
}

// NewPostingService wires a posting service over the store with no retry backoff.
func NewPostingService(s *Store) *journals.Service {
	return journals.NewService(s.Journals(), s, journals.Config{
		MaxAttempts:  3,
		BaseCurrency: "IDR",
		Boundary:     Boundary(),
	}, nil)
}

// Amount parses a decimal literal.
func Amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// Transfer builds a two-line posting from debit to credit account.
func Transfer(debitAccount, creditAccount int64, amount string) []journals.LineInput {
	return []journals.LineInput{
		{AccountID: debitAccount, Debit: Amount(amount)},
		{AccountID: creditAccount, Credit: Amount(amount)},
	}
}

// Header builds a general journal header on the reporting day.
func Header(ref string, at time.Time) journals.JournalHeader {
	return journals.JournalHeader{ReferenceNumber: ref, ReferenceType: journals.RefGeneral, TransactionDate: at}
}

// MustPost posts and fails the test on error.
func MustPost(t *testing.T, svc *journals.Service, lines []journals.LineInput, header journals.JournalHeader) int64 {
	t.Helper()
	id, err := svc.Post(context.Background(), lines, header)
	require.NoError(t, err)
	return id
}
