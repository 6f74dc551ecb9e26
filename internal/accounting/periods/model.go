package periods

import (
	"fmt"
	"time"
)

// Period represents a fiscal period window [StartDate, EndDate).
type Period struct {
	ID          int64
	Code        string
	FiscalYear  int
	PeriodMonth int
	StartDate   time.Time
	EndDate     time.Time
	IsClosed    bool
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Covers reports whether the civil day lies inside the half-open range.
func (p Period) Covers(day time.Time) bool {
	return !day.Before(p.StartDate) && day.Before(p.EndDate)
}

// LastDay is the final civil day covered by the period.
func (p Period) LastDay() time.Time {
	return p.EndDate.AddDate(0, 0, -1)
}

// DayBoundary converts instants into reporting days. Journals are stamped in UTC while
// daily summaries and periods are kept in the reporting zone, a fixed offset from UTC.
type DayBoundary struct {
	loc *time.Location
}

// DefaultDayOffset is the reporting zone offset used when none is configured.
const DefaultDayOffset = 7 * time.Hour

var defaultZone = NewDayBoundary(DefaultDayOffset).loc

// NewDayBoundary builds a boundary for a fixed UTC offset such as 7h.
func NewDayBoundary(offset time.Duration) DayBoundary {
	secs := int(offset / time.Second)
	name := fmt.Sprintf("UTC%+03d:%02d", secs/3600, abs(secs%3600)/60)
	return DayBoundary{loc: time.FixedZone(name, secs)}
}

// DefaultDayBoundary is the UTC+7 reporting boundary.
func DefaultDayBoundary() DayBoundary {
	return DayBoundary{loc: defaultZone}
}

// IsZero reports whether b was never configured.
func (b DayBoundary) IsZero() bool {
	return b.loc == nil
}

// Location returns the reporting zone. An unconfigured boundary reports
// DefaultDayOffset, never UTC.
func (b DayBoundary) Location() *time.Location {
	if b.loc == nil {
		return defaultZone
	}
	return b.loc
}

// Day truncates t to its reporting civil date, expressed as midnight UTC so it
// round-trips through a postgres date column unchanged.
func (b DayBoundary) Day(t time.Time) time.Time {
	local := t.In(b.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOf returns the instant at which the civil day begins in the reporting zone.
func (b DayBoundary) StartOf(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, b.Location())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
