package journals_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/glsummary"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type observerStub struct {
	statuses []string
	attempts []int
}

func (o *observerStub) ObservePosting(status string, attempts int) {
	o.statuses = append(o.statuses, status)
	o.attempts = append(o.attempts, attempts)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, lt.Amount(want).Equal(got), "want %s got %s", want, got.String())
}

func requireTBEqual(t *testing.T, want, got trialbalance.Row) {
	t.Helper()
	pairs := [][2]decimal.Decimal{
		{want.OpeningDebit, got.OpeningDebit}, {want.OpeningCredit, got.OpeningCredit},
		{want.PeriodDebit, got.PeriodDebit}, {want.PeriodCredit, got.PeriodCredit},
		{want.EndingDebit, got.EndingDebit}, {want.EndingCredit, got.EndingCredit},
		{want.YTDDebit, got.YTDDebit}, {want.YTDCredit, got.YTDCredit},
	}
	for i, p := range pairs {
		require.True(t, p[0].Equal(p[1]), "bucket %d: want %s got %s", i, p[0], p[1])
	}
}

func requireGLEqual(t *testing.T, want, got []glsummary.Row) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Date, got[i].Date)
		require.True(t, want[i].OpeningBalance.Equal(got[i].OpeningBalance))
		require.True(t, want[i].DebitTotal.Equal(got[i].DebitTotal))
		require.True(t, want[i].CreditTotal.Equal(got[i].CreditTotal))
		require.True(t, want[i].ClosingBalance.Equal(got[i].ClosingBalance))
		require.Equal(t, want[i].TransactionCount, got[i].TransactionCount)
	}
}

func TestPostCashReceivableScenario(t *testing.T) {
	store := lt.Standard()
	store.SeedTrialBalance(trialbalance.Row{PeriodID: lt.Jan2024, AccountID: lt.Cash, OpeningDebit: lt.Amount("500000"), YTDDebit: lt.Amount("500000")})
	store.SeedTrialBalance(trialbalance.Row{PeriodID: lt.Jan2024, AccountID: lt.Receivable, OpeningDebit: lt.Amount("2000000"), YTDDebit: lt.Amount("2000000")})
	svc := lt.NewPostingService(store)

	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Receivable, "1000000"), lt.Header("RCPT-001", lt.At(2024, 1, 15)))

	cash, ok := store.TrialBalance(lt.Jan2024, lt.Cash)
	require.True(t, ok)
	requireDecimal(t, "1500000", cash.EndingDebit)
	require.True(t, cash.EndingCredit.IsZero())

	recv, ok := store.TrialBalance(lt.Jan2024, lt.Receivable)
	require.True(t, ok)
	requireDecimal(t, "1000000", recv.EndingDebit)
	require.True(t, recv.EndingCredit.IsZero())
	requireDecimal(t, "1000000", recv.PeriodCredit)

	cashGL := store.GLRows(lt.Cash, lt.Jan2024)
	require.Len(t, cashGL, 1)
	require.Equal(t, lt.Date(2024, 1, 15), cashGL[0].Date)
	requireDecimal(t, "1000000", cashGL[0].ClosingBalance.Sub(cashGL[0].OpeningBalance))
	require.Equal(t, 1, cashGL[0].TransactionCount)

	recvGL := store.GLRows(lt.Receivable, lt.Jan2024)
	require.Len(t, recvGL, 1)
	requireDecimal(t, "-1000000", recvGL[0].ClosingBalance.Sub(recvGL[0].OpeningBalance))

	j, ok := store.Journal(id)
	require.True(t, ok)
	require.Equal(t, journals.StatusPosted, j.Status)
	require.Equal(t, "JV-GENERAL-20240115-0001", j.LedgerNumber)
	require.Equal(t, []int{1, 2}, []int{j.Lines[0].LineNumber, j.Lines[1].LineNumber})
	require.Equal(t, "IDR", j.Currency)
	requireDecimal(t, "-1000000", j.Lines[1].LocalAmount)
}

func TestPostUnbalancedPersistsNothing(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)

	_, err := svc.Post(context.Background(), []journals.LineInput{
		{AccountID: lt.Cash, Debit: lt.Amount("100")},
		{AccountID: lt.Revenue, Credit: lt.Amount("99.50")},
	}, lt.Header("INV-9", lt.At(2024, 1, 10)))

	var unbalanced *shared.UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	require.Equal(t, "INV-9", unbalanced.Reference)
	requireDecimal(t, "0.50", unbalanced.Diff())
	require.Zero(t, store.JournalCount())
	require.Empty(t, store.TrialBalanceRows(lt.Jan2024))
	require.Empty(t, store.GLRows(lt.Cash, lt.Jan2024))
	require.Empty(t, store.GLRows(lt.Revenue, lt.Jan2024))
}

func TestPostValidation(t *testing.T) {
	cases := []struct {
		name   string
		lines  []journals.LineInput
		header journals.JournalHeader
		want   error
	}{
		{
			name:   "single line",
			lines:  []journals.LineInput{{AccountID: lt.Cash, Debit: lt.Amount("10")}},
			header: lt.Header("A", lt.At(2024, 1, 3)),
			want:   shared.ErrTooFewLines,
		},
		{
			name: "both sides",
			lines: []journals.LineInput{
				{AccountID: lt.Cash, Debit: lt.Amount("10"), Credit: lt.Amount("10")},
				{AccountID: lt.Revenue, Credit: lt.Amount("10")},
			},
			header: lt.Header("B", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidLine,
		},
		{
			name: "zero line",
			lines: []journals.LineInput{
				{AccountID: lt.Cash, Debit: lt.Amount("10")},
				{AccountID: lt.Revenue, Credit: lt.Amount("10")},
				{AccountID: lt.Receivable},
			},
			header: lt.Header("C", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidLine,
		},
		{
			name: "negative amount",
			lines: []journals.LineInput{
				{AccountID: lt.Cash, Debit: lt.Amount("-10")},
				{AccountID: lt.Revenue, Credit: lt.Amount("-10")},
			},
			header: lt.Header("D", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidLine,
		},
		{
			name:   "header account",
			lines:  lt.Transfer(lt.AssetsHeader, lt.Revenue, "10"),
			header: lt.Header("E", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidAccount,
		},
		{
			name:   "inactive account",
			lines:  lt.Transfer(lt.Dormant, lt.Revenue, "10"),
			header: lt.Header("F", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidAccount,
		},
		{
			name:   "unknown account",
			lines:  lt.Transfer(404, lt.Revenue, "10"),
			header: lt.Header("G", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidAccount,
		},
		{
			name:   "closed period",
			lines:  lt.Transfer(lt.Cash, lt.Revenue, "10"),
			header: lt.Header("H", lt.At(2023, 12, 20)),
			want:   shared.ErrPeriodClosed,
		},
		{
			name:   "no period",
			lines:  lt.Transfer(lt.Cash, lt.Revenue, "10"),
			header: lt.Header("I", lt.At(2025, 6, 1)),
			want:   shared.ErrNoOpenPeriod,
		},
		{
			name:   "missing reference",
			lines:  lt.Transfer(lt.Cash, lt.Revenue, "10"),
			header: lt.Header("", lt.At(2024, 1, 3)),
			want:   shared.ErrInvalidHeader,
		},
		{
			name:  "unknown currency",
			lines: lt.Transfer(lt.Cash, lt.Revenue, "10"),
			header: journals.JournalHeader{
				ReferenceNumber: "J", ReferenceType: journals.RefGeneral, TransactionDate: lt.At(2024, 1, 3), Currency: "XQQ",
			},
			want: shared.ErrInvalidHeader,
		},
		{
			name:  "source id without module",
			lines: lt.Transfer(lt.Cash, lt.Revenue, "10"),
			header: journals.JournalHeader{
				ReferenceNumber: "K", ReferenceType: journals.RefGeneral, TransactionDate: lt.At(2024, 1, 3), SourceID: uuid.New(),
			},
			want: shared.ErrInvalidHeader,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := lt.Standard()
			obs := &observerStub{}
			svc := lt.NewPostingService(store)
			svc.WithObserver(obs)

			_, err := svc.Post(context.Background(), tc.lines, tc.header)
			require.ErrorIs(t, err, tc.want)
			require.False(t, shared.IsTransient(err))
			require.Zero(t, store.JournalCount())
			require.Equal(t, []string{journals.OutcomeRejected}, obs.statuses)
			require.LessOrEqual(t, obs.attempts[0], 1, "validation errors are never retried")
		})
	}
}

func TestPostWithinEpsilonAccepted(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	_, err := svc.Post(context.Background(), []journals.LineInput{
		{AccountID: lt.Cash, Debit: lt.Amount("100.00")},
		{AccountID: lt.Revenue, Credit: lt.Amount("99.99")},
	}, lt.Header("ROUND-1", lt.At(2024, 1, 4)))
	require.NoError(t, err)
}

func TestPostUsesReportingDay(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)

	// 18:00 UTC on Jan 31 is Feb 1 in the reporting zone.
	late := lt.Date(2024, 1, 31).Add(18 * time.Hour)
	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "250"), lt.Header("LATE", late))

	j, _ := store.Journal(id)
	require.Equal(t, lt.Feb2024, j.PeriodID)
	require.Equal(t, "JV-GENERAL-20240201-0001", j.LedgerNumber)
	rows := store.GLRows(lt.Cash, lt.Feb2024)
	require.Len(t, rows, 1)
	require.Equal(t, lt.Date(2024, 2, 1), rows[0].Date)
}

func TestPostWithoutBoundaryUsesReportingOffset(t *testing.T) {
	store := lt.Standard()
	svc := journals.NewService(store.Journals(), store, journals.Config{}, nil)
	require.Equal(t, "UTC+07:00", svc.Boundary().Location().String())

	late := lt.Date(2024, 1, 31).Add(18 * time.Hour)
	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "250"), lt.Header("LATE", late))

	j, _ := store.Journal(id)
	require.Equal(t, lt.Feb2024, j.PeriodID)
	require.Equal(t, "JV-GENERAL-20240201-0001", j.LedgerNumber)
}

func TestLedgerNumbersPerTypeAndDay(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	at := lt.At(2024, 1, 8)

	a := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "1"), lt.Header("A", at))
	b := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "2"), lt.Header("B", at))
	pay := lt.Header("C", at)
	pay.ReferenceType = journals.RefPayment
	c := lt.MustPost(t, svc, lt.Transfer(lt.Payable, lt.Cash, "3"), pay)

	numbers := make([]string, 0, 3)
	for _, id := range []int64{a, b, c} {
		j, _ := store.Journal(id)
		numbers = append(numbers, j.LedgerNumber)
	}
	require.Equal(t, []string{"JV-GENERAL-20240108-0001", "JV-GENERAL-20240108-0002", "JV-PAYMENT-20240108-0001"}, numbers)
}

func TestPostRetriesTransientFailures(t *testing.T) {
	store := lt.Standard()
	store.FailCommits(shared.ErrConcurrentModification, shared.ErrDuplicateLedgerNumber)
	obs := &observerStub{}
	svc := lt.NewPostingService(store)
	svc.WithObserver(obs)

	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "75"), lt.Header("RETRY", lt.At(2024, 1, 9)))

	require.Equal(t, 1, store.JournalCount())
	j, _ := store.Journal(id)
	// Each attempt draws a fresh number; the two rolled back ones are skipped.
	require.Equal(t, "JV-GENERAL-20240109-0003", j.LedgerNumber)
	require.Equal(t, []string{journals.OutcomePosted}, obs.statuses)
	require.Equal(t, []int{3}, obs.attempts)
	row, _ := store.TrialBalance(lt.Jan2024, lt.Cash)
	requireDecimal(t, "75", row.PeriodDebit)
}

func TestPostExhaustsRetries(t *testing.T) {
	store := lt.Standard()
	store.FailCommits(shared.ErrDuplicateLedgerNumber, shared.ErrDuplicateLedgerNumber, shared.ErrDuplicateLedgerNumber)
	obs := &observerStub{}
	svc := lt.NewPostingService(store)
	svc.WithObserver(obs)

	_, err := svc.Post(context.Background(), lt.Transfer(lt.Cash, lt.Revenue, "75"), lt.Header("RETRY", lt.At(2024, 1, 9)))

	var failed *shared.PostingFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, 3, failed.Attempts)
	require.ErrorIs(t, err, shared.ErrPostingFailed)
	require.ErrorIs(t, err, shared.ErrDuplicateLedgerNumber)
	require.Zero(t, store.JournalCount())
	require.Empty(t, store.TrialBalanceRows(lt.Jan2024))
	require.Equal(t, []string{journals.OutcomeFailed}, obs.statuses)
}

func TestPostSourceIsIdempotent(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	header := lt.Header("GRN-1", lt.At(2024, 1, 11))
	header.SourceModule = "grn"
	header.SourceID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("grn:1"))

	lt.MustPost(t, svc, lt.Transfer(lt.Inventory, lt.Payable, "500"), header)
	_, err := svc.Post(context.Background(), lt.Transfer(lt.Inventory, lt.Payable, "500"), header)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
	require.Equal(t, 1, store.JournalCount())
	row, _ := store.TrialBalance(lt.Jan2024, lt.Inventory)
	requireDecimal(t, "500", row.PeriodDebit)
}

func TestPostForeignCurrencyLocalAmount(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	header := lt.Header("USD-1", lt.At(2024, 1, 12))
	header.Currency = "usd"
	header.ExchangeRate = lt.Amount("15500.5")

	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "10.10"), header)
	j, _ := store.Journal(id)
	require.Equal(t, "USD", j.Currency)
	requireDecimal(t, "156555.05", j.Lines[0].LocalAmount)
	requireDecimal(t, "-156555.05", j.Lines[1].LocalAmount)
}

func TestVoidRestoresAggregatesExactly(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	ctx := context.Background()

	lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "300"), lt.Header("BASE-1", lt.At(2024, 1, 5)))
	lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "120"), lt.Header("BASE-2", lt.At(2024, 1, 20)))

	cashBefore, _ := store.TrialBalance(lt.Jan2024, lt.Cash)
	revBefore, _ := store.TrialBalance(lt.Jan2024, lt.Revenue)
	cashGLBefore := store.GLRows(lt.Cash, lt.Jan2024)
	revGLBefore := store.GLRows(lt.Revenue, lt.Jan2024)

	// backdated between the two existing days, plus a new day of its own
	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "45.25"), lt.Header("MID", lt.At(2024, 1, 10)))
	require.Len(t, store.GLRows(lt.Cash, lt.Jan2024), 3)
	shifted := store.GLRows(lt.Cash, lt.Jan2024)[2]
	requireDecimal(t, "345.25", shifted.OpeningBalance)

	require.NoError(t, svc.Void(ctx, id, 77, "entered twice"))

	cashAfter, _ := store.TrialBalance(lt.Jan2024, lt.Cash)
	revAfter, _ := store.TrialBalance(lt.Jan2024, lt.Revenue)
	requireTBEqual(t, cashBefore, cashAfter)
	requireTBEqual(t, revBefore, revAfter)
	requireGLEqual(t, cashGLBefore, store.GLRows(lt.Cash, lt.Jan2024))
	requireGLEqual(t, revGLBefore, store.GLRows(lt.Revenue, lt.Jan2024))

	j, _ := store.Journal(id)
	require.Equal(t, journals.StatusVoid, j.Status)
	require.Equal(t, "entered twice", j.VoidReason)
	require.NotNil(t, j.VoidedBy)
	require.Equal(t, int64(77), *j.VoidedBy)
}

func TestVoidIsIdempotent(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	ctx := context.Background()

	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "99"), lt.Header("V", lt.At(2024, 1, 6)))
	require.NoError(t, svc.Void(ctx, id, 1, "wrong"))
	after, _ := store.TrialBalance(lt.Jan2024, lt.Cash)

	require.NoError(t, svc.Void(ctx, id, 1, "wrong"))
	again, _ := store.TrialBalance(lt.Jan2024, lt.Cash)
	requireTBEqual(t, after, again)

	voids := 0
	for _, log := range store.AuditLogs() {
		if log.Action == "journal.void" {
			voids++
		}
	}
	require.Equal(t, 1, voids)
}

func TestVoidRejectsClosedPeriod(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	id := lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Revenue, "10"), lt.Header("CL", lt.At(2024, 1, 6)))
	store.ClosePeriod(lt.Jan2024)

	err := svc.Void(context.Background(), id, 1, "late")
	var closed *shared.PeriodClosedError
	require.ErrorAs(t, err, &closed)
	require.Equal(t, "2024-01", closed.PeriodCode)
	j, _ := store.Journal(id)
	require.Equal(t, journals.StatusPosted, j.Status)

	require.ErrorIs(t, svc.Void(context.Background(), 999, 1, "x"), shared.ErrJournalNotFound)
}

func TestGLSummaryMatchesTrialBalance(t *testing.T) {
	store := lt.Standard()
	svc := lt.NewPostingService(store)
	ctx := context.Background()

	days := []int{3, 17, 9, 17, 1, 28, 9}
	var ids []int64
	for i, day := range days {
		amount := decimal.NewFromInt(int64(1000 * (i + 1))).String()
		ids = append(ids, lt.MustPost(t, svc, lt.Transfer(lt.Cash, lt.Receivable, amount), lt.Header("X", lt.At(2024, 1, day))))
		ids = append(ids, lt.MustPost(t, svc, lt.Transfer(lt.Receivable, lt.Revenue, amount), lt.Header("Y", lt.At(2024, 1, day))))
	}
	require.NoError(t, svc.Void(ctx, ids[3], 1, "dup"))
	require.NoError(t, svc.Void(ctx, ids[8], 1, "dup"))

	for _, acct := range []int64{lt.Cash, lt.Receivable, lt.Revenue} {
		rows := store.GLRows(acct, lt.Jan2024)
		debit, credit := glsummary.Totals(rows)
		tb, ok := store.TrialBalance(lt.Jan2024, acct)
		require.True(t, ok)
		require.True(t, debit.Equal(tb.PeriodDebit), "account %d debit gl=%s tb=%s", acct, debit, tb.PeriodDebit)
		require.True(t, credit.Equal(tb.PeriodCredit), "account %d credit gl=%s tb=%s", acct, credit, tb.PeriodCredit)
		require.True(t, tb.Consistent())

		for i := 1; i < len(rows); i++ {
			require.True(t, rows[i].OpeningBalance.Equal(rows[i-1].ClosingBalance), "chain broken on %s", rows[i].Date)
		}
		if len(rows) > 0 {
			last := rows[len(rows)-1]
			require.True(t, last.ClosingBalance.Equal(tb.PeriodDebit.Sub(tb.PeriodCredit)))
		}
	}
}
