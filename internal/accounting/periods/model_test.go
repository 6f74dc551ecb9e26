package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func TestDayBoundaryShiftsAcrossMidnight(t *testing.T) {
	b := NewDayBoundary(7 * time.Hour)
	require.Equal(t, "UTC+07:00", b.Location().String())

	// 18:30 UTC on Jan 31 is already Feb 1 in the reporting zone.
	late := time.Date(2024, 1, 31, 18, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), b.Day(late))

	early := time.Date(2024, 1, 31, 16, 59, 59, 0, time.UTC)
	require.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), b.Day(early))

	start := b.StartOf(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2024, 1, 31, 17, 0, 0, 0, time.UTC), start.UTC())
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), b.Day(start))
}

func TestZeroDayBoundaryUsesReportingOffset(t *testing.T) {
	var b DayBoundary
	require.True(t, b.IsZero())
	require.False(t, DefaultDayBoundary().IsZero())
	require.Equal(t, "UTC+07:00", b.Location().String())

	// 23:00 UTC is already the next day at UTC+7.
	at := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), b.Day(at))
	require.Equal(t, DefaultDayBoundary().Day(at), b.Day(at))
}

func TestPeriodCoversHalfOpen(t *testing.T) {
	p := Period{StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.True(t, p.Covers(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, p.Covers(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	require.False(t, p.Covers(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), p.LastDay())
}

type stubRepo struct {
	periods []Period
}

func (r stubRepo) FindCovering(ctx context.Context, day time.Time) (Period, error) {
	for _, p := range r.periods {
		if p.Covers(day) {
			return p, nil
		}
	}
	return Period{}, &shared.NoOpenPeriodError{Date: day}
}

func (r stubRepo) Get(ctx context.Context, id int64) (Period, error) {
	for _, p := range r.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return Period{}, shared.ErrPeriodNotFound
}

func (r stubRepo) GetForShare(ctx context.Context, id int64) (Period, error) {
	return r.Get(ctx, id)
}

func TestFindOpenPeriodByDate(t *testing.T) {
	repo := stubRepo{periods: []Period{
		{ID: 1, Code: "2024-01", StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), IsClosed: true},
		{ID: 2, Code: "2024-02", StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewService(repo, NewDayBoundary(7*time.Hour))
	ctx := context.Background()

	p, err := svc.FindOpenPeriodByDate(ctx, time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(2), p.ID)

	_, err = svc.FindOpenPeriodByDate(ctx, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	var closed *shared.PeriodClosedError
	require.ErrorAs(t, err, &closed)
	require.Equal(t, "2024-01", closed.PeriodCode)

	_, err = svc.FindOpenPeriodByDate(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrNoOpenPeriod)
}
