package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"serialization", &pgconn.PgError{Code: CodeSerializationFailure}, shared.ErrConcurrentModification},
		{"deadlock", fmt.Errorf("upsert: %w", &pgconn.PgError{Code: CodeDeadlockDetected}), shared.ErrConcurrentModification},
		{"ledger number", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: ConstraintLedgerNumber}, shared.ErrDuplicateLedgerNumber},
		{"source", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: ConstraintJournalSource}, shared.ErrSourceAlreadyLinked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			require.ErrorIs(t, got, tc.want)
			var pgErr *pgconn.PgError
			require.True(t, errors.As(got, &pgErr))
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	require.NoError(t, Classify(nil))
	other := &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "uq_accounts_code"}
	require.Same(t, error(other), Classify(other))
	plain := errors.New("boom")
	require.Equal(t, plain, Classify(plain))
	require.False(t, shared.IsTransient(Classify(plain)))
}
