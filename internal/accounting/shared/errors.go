package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line without exactly one positive side.
	ErrInvalidLine = errors.New("accounting: journal line must carry exactly one positive side")
	// ErrInvalidHeader indicates the journal header failed validation.
	ErrInvalidHeader = errors.New("accounting: invalid journal header")
	// ErrNoOpenPeriod indicates no period covers the transaction date.
	ErrNoOpenPeriod = errors.New("accounting: no period covers date")
	// ErrPeriodClosed indicates the covering period is closed.
	ErrPeriodClosed = errors.New("accounting: period is closed")
	// ErrPeriodNotFound indicates a period id that does not exist.
	ErrPeriodNotFound = errors.New("accounting: period not found")
	// ErrInvalidAccount indicates a missing, inactive or header account on a line.
	ErrInvalidAccount = errors.New("accounting: invalid account")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrDuplicateLedgerNumber indicates a ledger number race; retried by the posting service.
	ErrDuplicateLedgerNumber = errors.New("accounting: duplicate ledger number")
	// ErrConcurrentModification indicates a serialization failure on aggregate rows; retried.
	ErrConcurrentModification = errors.New("accounting: concurrent modification")
	// ErrPostingFailed indicates transient failures exhausted the retry budget.
	ErrPostingFailed = errors.New("accounting: posting failed")
	// ErrPeriodNotClosed indicates rollover was requested from an open period.
	ErrPeriodNotClosed = errors.New("accounting: source period is not closed")
	// ErrInvalidRollover indicates the rollover pair is not ordered.
	ErrInvalidRollover = errors.New("accounting: rollover target must follow source")
	// ErrPeriodBusy indicates another batch job holds the period lock.
	ErrPeriodBusy = errors.New("accounting: period is locked by another job")
)

// IsTransient reports whether err should trigger a full retry of a posting.
func IsTransient(err error) bool {
	return errors.Is(err, ErrDuplicateLedgerNumber) || errors.Is(err, ErrConcurrentModification)
}

// UnbalancedEntryError carries totals of a rejected journal.
type UnbalancedEntryError struct {
	Reference string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Diff returns debit minus credit.
func (e *UnbalancedEntryError) Diff() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("%s: ref=%q debit=%s credit=%s diff=%s", ErrUnbalanced, e.Reference,
		e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Diff().StringFixed(2))
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalanced }

// PeriodClosedError reports a posting or void against a closed period.
type PeriodClosedError struct {
	PeriodID   int64
	PeriodCode string
	Date       time.Time
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("%s: period=%s date=%s", ErrPeriodClosed, e.PeriodCode, e.Date.Format(time.DateOnly))
}

func (e *PeriodClosedError) Unwrap() error { return ErrPeriodClosed }

// NoOpenPeriodError reports a date with no covering period.
type NoOpenPeriodError struct {
	Date time.Time
}

func (e *NoOpenPeriodError) Error() string {
	return fmt.Sprintf("%s %s", ErrNoOpenPeriod, e.Date.Format(time.DateOnly))
}

func (e *NoOpenPeriodError) Unwrap() error { return ErrNoOpenPeriod }

// InvalidAccountError names the offending account.
type InvalidAccountError struct {
	AccountID int64
	Code      string
	Reason    string
}

func (e *InvalidAccountError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (id=%d) %s", ErrInvalidAccount, e.Code, e.AccountID, e.Reason)
	}
	return fmt.Sprintf("%s: id=%d %s", ErrInvalidAccount, e.AccountID, e.Reason)
}

func (e *InvalidAccountError) Unwrap() error { return ErrInvalidAccount }

// MissingSystemAccountMappingError names the unconfigured key.
type MissingSystemAccountMappingError struct {
	Key string
}

func (e *MissingSystemAccountMappingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMappingNotFound, e.Key)
}

func (e *MissingSystemAccountMappingError) Unwrap() error { return ErrMappingNotFound }

// PostingFailedError is returned once transient retries are exhausted.
type PostingFailedError struct {
	Attempts int
	Err      error
}

func (e *PostingFailedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrPostingFailed, e.Attempts, e.Err)
}

func (e *PostingFailedError) Unwrap() []error { return []error{ErrPostingFailed, e.Err} }
