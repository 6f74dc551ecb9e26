package periods

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type Service struct {
	repo     Repository
	boundary DayBoundary
}

func NewService(repo Repository, boundary DayBoundary) *Service {
	return &Service{repo: repo, boundary: boundary}
}

// FindOpenPeriodByDate returns the open period covering the reporting day of at.
func (s *Service) FindOpenPeriodByDate(ctx context.Context, at time.Time) (Period, error) {
	return RequireOpen(ctx, s.repo, s.boundary.Day(at))
}

// RequireOpen resolves the covering period of day and rejects it when closed.
func RequireOpen(ctx context.Context, repo Repository, day time.Time) (Period, error) {
	period, err := repo.FindCovering(ctx, day)
	if err != nil {
		return Period{}, err
	}
	if period.IsClosed {
		return Period{}, &shared.PeriodClosedError{PeriodID: period.ID, PeriodCode: period.Code, Date: day}
	}
	return period, nil
}
