package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// SQLSTATE codes treated specially by the ledger.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
)

// ConstraintLedgerNumber guards journals.ledger_number.
const ConstraintLedgerNumber = "uq_journals_ledger_number"

// ConstraintJournalSource guards journals(source_module, source_id).
const ConstraintJournalSource = "uq_journals_source"

// Classify maps postgres failures onto ledger error classes, keeping the original error wrapped.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
		return fmt.Errorf("%w: %w", shared.ErrConcurrentModification, err)
	case CodeUniqueViolation:
		switch pgErr.ConstraintName {
		case ConstraintLedgerNumber:
			return fmt.Errorf("%w: %w", shared.ErrDuplicateLedgerNumber, err)
		case ConstraintJournalSource:
			return fmt.Errorf("%w: %w", shared.ErrSourceAlreadyLinked, err)
		}
	}
	return err
}
