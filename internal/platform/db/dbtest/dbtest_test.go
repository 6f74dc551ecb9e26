package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithSearchPath(t *testing.T) {
	got, err := withSearchPath("postgres://u:p@localhost:5432/odyssey?sslmode=disable", "ledger_test_1")
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@localhost:5432/odyssey?search_path=ledger_test_1&sslmode=disable", got)

	got, err = withSearchPath("host=localhost dbname=odyssey", "ledger_test_1")
	require.NoError(t, err)
	require.Equal(t, "host=localhost dbname=odyssey search_path=ledger_test_1", got)
}
