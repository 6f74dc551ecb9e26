package journals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAccountDeltasGroupAndOrder(t *testing.T) {
	d := decimal.RequireFromString
	lines := []Line{
		{AccountID: 9, Debit: d("100"), Credit: decimal.Zero},
		{AccountID: 3, Debit: decimal.Zero, Credit: d("60")},
		{AccountID: 9, Debit: decimal.Zero, Credit: d("15")},
		{AccountID: 3, Debit: decimal.Zero, Credit: d("25")},
	}

	got := accountDeltas(lines, false)
	require.Len(t, got, 2)
	require.Equal(t, int64(3), got[0].AccountID)
	require.Equal(t, int64(9), got[1].AccountID)
	require.True(t, got[0].Credit.Equal(d("85")))
	require.True(t, got[1].Debit.Equal(d("100")))
	require.True(t, got[1].Credit.Equal(d("15")))
	require.Equal(t, 2, got[1].Lines)

	rev := accountDeltas(lines, true)
	require.True(t, rev[0].Credit.Equal(d("-85")))
	require.True(t, rev[1].Debit.Equal(d("-100")))
	require.Equal(t, -2, rev[1].Lines)
}
