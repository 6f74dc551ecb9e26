package integrity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func kinds(r integrity.Report) []integrity.Kind {
	out := make([]integrity.Kind, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, i.Kind)
	}
	return out
}

func TestCheckPassesAfterPostingsAndVoid(t *testing.T) {
	store := lt.Standard()
	store.SeedTrialBalance(trialbalance.Row{PeriodID: lt.Jan2024, AccountID: lt.Cash, OpeningDebit: lt.Amount("500000")})
	svc := lt.NewPostingService(store)
	lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Receivable, "1000000"), lt.Header("A", lt.At(2024, 1, 15)))
	voided := lt.MustPost(t, svc, lt.Transfer(lt.Inventory, lt.Payable, "300"), lt.Header("B", lt.At(2024, 1, 3)))
	lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "75.25"), lt.Header("C", lt.At(2024, 1, 20)))
	require.NoError(t, svc.Void(context.Background(), voided, 1, "duplicate"))

	report, err := integrity.NewChecker(store, lt.Amount("0"), nil).Check(context.Background(), lt.Jan2024)
	require.NoError(t, err)
	require.True(t, report.OK(), "%+v", report.Issues)
	require.Equal(t, 2, report.JournalsChecked)
	require.GreaterOrEqual(t, report.AccountsChecked, 4)
}

func TestCheckReportsTamperedTrialBalance(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Receivable, "100"), lt.Header("A", lt.At(2024, 1, 15)))

	row, ok := store.TrialBalance(lt.Jan2024, lt.Cash)
	require.True(t, ok)
	row.PeriodDebit = lt.Amount("90")
	store.CorruptTrialBalance(row)

	report, err := integrity.NewChecker(store, lt.Amount("0"), nil).Check(context.Background(), lt.Jan2024)
	require.NoError(t, err)
	require.False(t, report.OK())
	require.ElementsMatch(t, []integrity.Kind{
		integrity.KindTrialBalanceRow,
		integrity.KindLinesVsTB,
		integrity.KindGLVsTB,
	}, kinds(report))
	for _, issue := range report.Issues {
		require.Equal(t, lt.Cash, issue.AccountID)
	}
}

func TestCheckEmptyPeriod(t *testing.T) {
	report, err := integrity.NewChecker(lt.Standard(), lt.Amount("0"), nil).Check(context.Background(), lt.Feb2024)
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Zero(t, report.AccountsChecked)
}
