package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes one journal line submitted for posting.
type LineInput struct {
	AccountID   int64 `validate:"gt=0"`
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string `validate:"max=255"`
	ProjectID   *int64
	CustomerID  *int64
}

// JournalHeader carries the document metadata of a posting.
type JournalHeader struct {
	ReferenceNumber string        `validate:"required,max=64"`
	ReferenceType   ReferenceType `validate:"required,oneof=GENERAL PAYMENT RECEIPT PURCHASE SALES INVENTORY ADJUSTMENT"`
	TransactionDate time.Time     `validate:"required"`
	PostingDate     time.Time
	Currency        string `validate:"omitempty,len=3"`
	ExchangeRate    decimal.Decimal
	Memo            string `validate:"max=500"`
	CreatedBy       int64  `validate:"gte=0"`
	PostedBy        int64  `validate:"gte=0"`
	SourceModule    string `validate:"max=64"`
	SourceID        uuid.UUID
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalizeHeader fills defaults and checks the header shape.
func normalizeHeader(h JournalHeader, baseCurrency string, now time.Time) (JournalHeader, error) {
	h.ReferenceNumber = strings.TrimSpace(h.ReferenceNumber)
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))
	h.SourceModule = strings.ToUpper(strings.TrimSpace(h.SourceModule))
	if h.ReferenceType == "" {
		h.ReferenceType = RefGeneral
	}
	if h.Currency == "" {
		h.Currency = baseCurrency
	}
	if h.ExchangeRate.IsZero() {
		h.ExchangeRate = decimal.NewFromInt(1)
	}
	if h.PostingDate.IsZero() {
		h.PostingDate = now
	}
	if err := validate.Struct(h); err != nil {
		return h, fmt.Errorf("%w: %v", shared.ErrInvalidHeader, err)
	}
	if _, err := currency.ParseISO(h.Currency); err != nil {
		return h, fmt.Errorf("%w: currency %q: %v", shared.ErrInvalidHeader, h.Currency, err)
	}
	if h.ExchangeRate.IsNegative() {
		return h, fmt.Errorf("%w: exchange rate must be positive", shared.ErrInvalidHeader)
	}
	if (h.SourceModule == "") != (h.SourceID == uuid.Nil) {
		return h, fmt.Errorf("%w: source module and source id go together", shared.ErrInvalidHeader)
	}
	return h, nil
}

// buildLines checks line shape and balance, returning dense numbered lines.
func buildLines(in []LineInput, h JournalHeader, epsilon decimal.Decimal) ([]Line, error) {
	if len(in) < 2 {
		return nil, shared.ErrTooFewLines
	}
	lines := make([]Line, 0, len(in))
	for idx, li := range in {
		if err := validate.Struct(li); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidLine, idx+1, err)
		}
		debit, credit := shared.Round2(li.Debit), shared.Round2(li.Credit)
		if debit.IsNegative() || credit.IsNegative() {
			return nil, fmt.Errorf("%w: line %d has a negative amount", shared.ErrInvalidLine, idx+1)
		}
		if debit.IsPositive() == credit.IsPositive() {
			return nil, fmt.Errorf("%w: line %d debit=%s credit=%s", shared.ErrInvalidLine, idx+1, debit.StringFixed(2), credit.StringFixed(2))
		}
		lines = append(lines, Line{
			LineNumber:  idx + 1,
			AccountID:   li.AccountID,
			Debit:       debit,
			Credit:      credit,
			LocalAmount: shared.Round2(debit.Sub(credit).Mul(h.ExchangeRate)),
			Description: strings.TrimSpace(li.Description),
			ProjectID:   li.ProjectID,
			CustomerID:  li.CustomerID,
		})
	}
	debit, credit := sumLines(lines)
	if !shared.WithinEpsilon(debit, credit, epsilon) {
		return nil, &shared.UnbalancedEntryError{Reference: h.ReferenceNumber, Debit: debit, Credit: credit}
	}
	return lines, nil
}

func accountIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}
