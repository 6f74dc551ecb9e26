package journals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestLedgerNumberFormat(t *testing.T) {
	prefix := LedgerPrefix(RefAdjustment, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "JV-ADJUSTMENT-20240131", prefix)
	require.Equal(t, "JV-ADJUSTMENT-20240131-0007", LedgerNumber(prefix, 7))
	require.Equal(t, "JV-ADJUSTMENT-20240131-12345", LedgerNumber(prefix, 12345))
}

func TestNormalizeHeaderDefaults(t *testing.T) {
	now := time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC)
	h, err := normalizeHeader(JournalHeader{
		ReferenceNumber: "  PAY-1 ",
		TransactionDate: now,
		SourceModule:    "ap_payment",
	}, "IDR", now)
	require.ErrorIs(t, err, shared.ErrInvalidHeader)

	h, err = normalizeHeader(JournalHeader{ReferenceNumber: "  PAY-1 ", TransactionDate: now}, "IDR", now)
	require.NoError(t, err)
	require.Equal(t, "PAY-1", h.ReferenceNumber)
	require.Equal(t, RefGeneral, h.ReferenceType)
	require.Equal(t, "IDR", h.Currency)
	require.True(t, h.ExchangeRate.Equal(decimal.NewFromInt(1)))
	require.Equal(t, now, h.PostingDate)
}

func TestAccountIDsDeduplicates(t *testing.T) {
	require.Equal(t, []int64{3, 1}, accountIDs([]Line{{AccountID: 3}, {AccountID: 1}, {AccountID: 3}}))
}
