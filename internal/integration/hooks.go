// Package integration turns operational workflow events into ledger postings.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	Post(ctx context.Context, lines []journals.LineInput, header journals.JournalHeader) (int64, error)
}

// Source modules stamped on workflow journals.
const (
	SourceGRN                 = "PROCUREMENT.GRN"
	SourceAPInvoice           = "PROCUREMENT.AP_INVOICE"
	SourceAPPayment           = "PROCUREMENT.AP_PAYMENT"
	SourceInventoryAdjustment = "INVENTORY.ADJUSTMENT"
)

var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("odyssey-ledger.integration"))

// SourceID derives a stable journal source id from a workflow document key.
func SourceID(module, key string) uuid.UUID {
	return uuid.NewSHA1(sourceNamespace, []byte(module+":"+key))
}

// Hooks wires domain events from operational modules into the general ledger.
type Hooks struct {
	ledger   Ledger
	resolver *mappings.Resolver
	logger   *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, mappingRepo mappings.Repository, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, resolver: mappings.NewResolver(mappingRepo), logger: logger}
}

// post submits the journal. A source that is already linked means the event was delivered twice.
func (h *Hooks) post(ctx context.Context, lines []journals.LineInput, header journals.JournalHeader) error {
	if header.SourceID == uuid.Nil {
		return errors.New("integration: source id required")
	}
	id, err := h.ledger.Post(ctx, lines, header)
	if errors.Is(err, shared.ErrSourceAlreadyLinked) {
		h.logger.Info("workflow posting already linked",
			slog.String("source_module", header.SourceModule),
			slog.String("source_id", header.SourceID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("integration %s %s: %w", header.SourceModule, header.ReferenceNumber, err)
	}
	h.logger.Debug("workflow posting created", slog.String("source_module", header.SourceModule), slog.Int64("journal_id", id))
	return nil
}

// HandleGRNPosted posts the accounting entry for a goods receipt.
func (h *Hooks) HandleGRNPosted(ctx context.Context, evt GRNPostedEvent) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	if evt.ReceivedAt.IsZero() {
		return errors.New("integration: GRN received date required")
	}
	total := decimal.Zero
	for _, line := range evt.Lines {
		total = total.Add(shared.Round2(line.Qty.Mul(line.UnitCost)))
	}
	if !total.IsPositive() {
		return nil
	}
	accts, err := h.resolver.ResolveAll(ctx, mappings.KeyInventoryAccount, mappings.KeyGRNIClearingAccount)
	if err != nil {
		return err
	}
	return h.post(ctx, []journals.LineInput{
		{AccountID: accts[mappings.KeyInventoryAccount], Debit: total},
		{AccountID: accts[mappings.KeyGRNIClearingAccount], Credit: total},
	}, journals.JournalHeader{
		ReferenceNumber: evt.Number,
		ReferenceType:   journals.RefPurchase,
		TransactionDate: evt.ReceivedAt,
		Memo:            fmt.Sprintf("GRN %s", evt.Number),
		SourceModule:    SourceGRN,
		SourceID:        SourceID(SourceGRN, fmt.Sprintf("%d", evt.ID)),
	})
}

// HandleAPInvoicePosted clears GRNI for matched invoices, or books straight to inventory, and
// raises the payable including purchase tax.
func (h *Hooks) HandleAPInvoicePosted(ctx context.Context, evt APInvoicePostedEvent) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	if evt.PostedAt.IsZero() {
		return errors.New("integration: AP invoice post date required")
	}
	subtotal, tax := shared.Round2(evt.Subtotal), shared.Round2(evt.Tax)
	if !subtotal.IsPositive() {
		return nil
	}
	debitKey := mappings.KeyInventoryAccount
	if evt.GRNID != 0 {
		debitKey = mappings.KeyGRNIClearingAccount
	}
	keys := []string{debitKey, mappings.KeyAccountsPayable}
	if tax.IsPositive() {
		keys = append(keys, mappings.KeyPurchaseTaxAccount)
	}
	accts, err := h.resolver.ResolveAll(ctx, keys...)
	if err != nil {
		return err
	}
	lines := []journals.LineInput{{AccountID: accts[debitKey], Debit: subtotal}}
	if tax.IsPositive() {
		lines = append(lines, journals.LineInput{AccountID: accts[mappings.KeyPurchaseTaxAccount], Debit: tax})
	}
	lines = append(lines, journals.LineInput{AccountID: accts[mappings.KeyAccountsPayable], Credit: subtotal.Add(tax)})
	return h.post(ctx, lines, journals.JournalHeader{
		ReferenceNumber: evt.Number,
		ReferenceType:   journals.RefPurchase,
		TransactionDate: evt.PostedAt,
		Memo:            fmt.Sprintf("AP Invoice %s", evt.Number),
		SourceModule:    SourceAPInvoice,
		SourceID:        SourceID(SourceAPInvoice, fmt.Sprintf("%d", evt.ID)),
	})
}

// HandleAPPaymentPosted posts the accounting entry for an AP payment.
func (h *Hooks) HandleAPPaymentPosted(ctx context.Context, evt APPaymentPostedEvent) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	if evt.PaidAt.IsZero() {
		return errors.New("integration: AP payment date required")
	}
	amount := shared.Round2(evt.Amount)
	if !amount.IsPositive() {
		return nil
	}
	accts, err := h.resolver.ResolveAll(ctx, mappings.KeyAccountsPayable, mappings.KeyCashAccount)
	if err != nil {
		return err
	}
	return h.post(ctx, []journals.LineInput{
		{AccountID: accts[mappings.KeyAccountsPayable], Debit: amount},
		{AccountID: accts[mappings.KeyCashAccount], Credit: amount},
	}, journals.JournalHeader{
		ReferenceNumber: evt.Number,
		ReferenceType:   journals.RefPayment,
		TransactionDate: evt.PaidAt,
		Memo:            fmt.Sprintf("AP Payment %s", evt.Number),
		SourceModule:    SourceAPPayment,
		SourceID:        SourceID(SourceAPPayment, fmt.Sprintf("%d", evt.ID)),
	})
}

// HandleInventoryAdjustmentPosted posts a stock count gain or loss against the adjustment account.
func (h *Hooks) HandleInventoryAdjustmentPosted(ctx context.Context, evt InventoryAdjustmentPostedEvent) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	if evt.PostedAt.IsZero() {
		return errors.New("integration: adjustment post date required")
	}
	amount := shared.Round2(evt.Qty.Abs().Mul(evt.UnitCost))
	if !amount.IsPositive() {
		return nil
	}
	accts, err := h.resolver.ResolveAll(ctx, mappings.KeyInventoryAccount, mappings.KeyInventoryAdjustmentAccount)
	if err != nil {
		return err
	}
	inv, adj := accts[mappings.KeyInventoryAccount], accts[mappings.KeyInventoryAdjustmentAccount]
	lines := []journals.LineInput{{AccountID: inv, Debit: amount}, {AccountID: adj, Credit: amount}}
	if evt.Qty.IsNegative() {
		lines = []journals.LineInput{{AccountID: adj, Debit: amount}, {AccountID: inv, Credit: amount}}
	}
	return h.post(ctx, lines, journals.JournalHeader{
		ReferenceNumber: evt.Code,
		ReferenceType:   journals.RefInventory,
		TransactionDate: evt.PostedAt,
		Memo:            fmt.Sprintf("Inventory Adjustment %s", evt.Code),
		SourceModule:    SourceInventoryAdjustment,
		SourceID:        SourceID(SourceInventoryAdjustment, fmt.Sprintf("%s:%d:%d", evt.Code, evt.WarehouseID, evt.ProductID)),
	})
}
