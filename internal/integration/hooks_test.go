package integration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

const (
	grni        int64 = 20
	purchaseTax int64 = 21
)

func newHooks(t *testing.T) (*integration.Hooks, *lt.Store) {
	t.Helper()
	store := lt.Standard()
	store.AddAccount(accounts.Account{ID: grni, Code: "2-20150", Name: "GRNI", Type: accounts.AccountTypeLiability, IsActive: true})
	store.AddAccount(accounts.Account{ID: purchaseTax, Code: "1-10501", Name: "VAT In", Type: accounts.AccountTypeAsset, IsActive: true})
	store.SetMapping(mappings.KeyInventoryAccount, lt.Inventory)
	store.SetMapping(mappings.KeyGRNIClearingAccount, grni)
	store.SetMapping(mappings.KeyAccountsPayable, lt.Payable)
	store.SetMapping(mappings.KeyPurchaseTaxAccount, purchaseTax)
	store.SetMapping(mappings.KeyCashAccount, lt.Cash)
	return integration.NewHooks(lt.NewPostingService(store), store.Mappings(), nil), store
}

func TestProcureToPayFlow(t *testing.T) {
	hooks, store := newHooks(t)
	ctx := context.Background()

	grn := integration.GRNPostedEvent{ID: 1, Number: "GRN-0001", ReceivedAt: lt.At(2024, 1, 5), Lines: []integration.GRNLine{
		{ProductID: 1, Qty: lt.Amount("10"), UnitCost: lt.Amount("1500.50")},
		{ProductID: 2, Qty: lt.Amount("3"), UnitCost: lt.Amount("2000")},
	}}
	require.NoError(t, hooks.HandleGRNPosted(ctx, grn))
	// redelivery of the same event is absorbed
	require.NoError(t, hooks.HandleGRNPosted(ctx, grn))
	require.Equal(t, 1, store.JournalCount())

	require.NoError(t, hooks.HandleAPInvoicePosted(ctx, integration.APInvoicePostedEvent{
		ID: 7, Number: "INV-7", GRNID: 1, Subtotal: lt.Amount("21005"), Tax: lt.Amount("2310.55"), PostedAt: lt.At(2024, 1, 8),
	}))
	require.NoError(t, hooks.HandleAPPaymentPosted(ctx, integration.APPaymentPostedEvent{
		ID: 3, Number: "PAY-3", Amount: lt.Amount("23315.55"), PaidAt: lt.At(2024, 1, 20),
	}))
	require.Equal(t, 3, store.JournalCount())

	inv, _ := store.TrialBalance(lt.Jan2024, lt.Inventory)
	require.Equal(t, "21005.00", inv.EndingDebit.StringFixed(2))
	clearing, _ := store.TrialBalance(lt.Jan2024, grni)
	require.True(t, clearing.EndingDebit.IsZero())
	require.True(t, clearing.EndingCredit.IsZero())
	tax, _ := store.TrialBalance(lt.Jan2024, purchaseTax)
	require.Equal(t, "2310.55", tax.EndingDebit.StringFixed(2))
	payable, _ := store.TrialBalance(lt.Jan2024, lt.Payable)
	require.True(t, payable.EndingCredit.IsZero())
	cash, _ := store.TrialBalance(lt.Jan2024, lt.Cash)
	require.Equal(t, "23315.55", cash.EndingCredit.StringFixed(2))
}

func TestInventoryAdjustmentDirection(t *testing.T) {
	hooks, store := newHooks(t)
	ctx := context.Background()

	require.NoError(t, hooks.HandleInventoryAdjustmentPosted(ctx, integration.InventoryAdjustmentPostedEvent{
		Code: "ADJ-1", ProductID: 1, WarehouseID: 2, Qty: lt.Amount("-4"), UnitCost: lt.Amount("250"), PostedAt: lt.At(2024, 1, 9),
	}))
	require.NoError(t, hooks.HandleInventoryAdjustmentPosted(ctx, integration.InventoryAdjustmentPostedEvent{
		Code: "ADJ-2", ProductID: 1, WarehouseID: 2, Qty: lt.Amount("1"), UnitCost: lt.Amount("250"), PostedAt: lt.At(2024, 1, 10),
	}))
	// zero quantity is ignored
	require.NoError(t, hooks.HandleInventoryAdjustmentPosted(ctx, integration.InventoryAdjustmentPostedEvent{
		Code: "ADJ-3", ProductID: 1, Qty: lt.Amount("0"), UnitCost: lt.Amount("250"), PostedAt: lt.At(2024, 1, 10),
	}))
	require.Equal(t, 2, store.JournalCount())

	inv, _ := store.TrialBalance(lt.Jan2024, lt.Inventory)
	require.Equal(t, "750.00", inv.EndingCredit.StringFixed(2))
	adj, _ := store.TrialBalance(lt.Jan2024, lt.InventoryAdjustment)
	require.Equal(t, "750.00", adj.EndingDebit.StringFixed(2))
}

func TestHooksSurfaceMissingMapping(t *testing.T) {
	store := lt.Standard()
	hooks := integration.NewHooks(lt.NewPostingService(store), store.Mappings(), nil)
	err := hooks.HandleAPPaymentPosted(context.Background(), integration.APPaymentPostedEvent{
		ID: 1, Number: "PAY-1", Amount: lt.Amount("10"), PaidAt: lt.At(2024, 1, 3),
	})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	require.Zero(t, store.JournalCount())
}

func TestHooksRejectClosedPeriod(t *testing.T) {
	hooks, _ := newHooks(t)
	err := hooks.HandleAPPaymentPosted(context.Background(), integration.APPaymentPostedEvent{
		ID: 2, Number: "PAY-2", Amount: lt.Amount("10"), PaidAt: lt.At(2023, 12, 15),
	})
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
}

func TestSourceIDIsStable(t *testing.T) {
	require.Equal(t, integration.SourceID(integration.SourceGRN, "1"), integration.SourceID(integration.SourceGRN, "1"))
	require.NotEqual(t, integration.SourceID(integration.SourceGRN, "1"), integration.SourceID(integration.SourceAPInvoice, "1"))
}
