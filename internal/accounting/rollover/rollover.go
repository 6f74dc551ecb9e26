// Package rollover carries trial balance endings of a period into the opening bucket of
// the period that follows it.
package rollover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type TxRepository interface {
	Periods() periods.Repository
	Accounts() accounts.Repository
	TrialBalances() trialbalance.Repository
}

// PeriodLocker serialises batch jobs per period.
type PeriodLocker interface {
	Lock(ctx context.Context, periodIDs ...int64) (release func(context.Context), err error)
}

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Options tune a single run.
type Options struct {
	// Force allows an open source period. Operator use only.
	Force   bool
	ActorID int64
}

// Report summarises a rollover run.
type Report struct {
	FromPeriodID    int64           `json:"from_period_id"`
	ToPeriodID      int64           `json:"to_period_id"`
	AccountsScanned int             `json:"accounts_scanned"`
	RowsChanged     int             `json:"rows_changed"`
	OpeningDebit    decimal.Decimal `json:"opening_debit"`
	OpeningCredit   decimal.Decimal `json:"opening_credit"`
	Forced          bool            `json:"forced"`
}

type Service struct {
	repo   Repository
	locker PeriodLocker
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker PeriodLocker, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, locker: locker, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Rollover sets the opening of every posting account in to from the ending in from. Period
// activity already accumulated in to is kept, so repeated runs converge.
func (s *Service) Rollover(ctx context.Context, fromID, toID int64, opts Options) (Report, error) {
	if fromID == toID {
		return Report{}, fmt.Errorf("%w: period %d onto itself", shared.ErrInvalidRollover, fromID)
	}
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, fromID, toID)
		if err != nil {
			return Report{}, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	report := Report{FromPeriodID: fromID, ToPeriodID: toID, OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report = Report{FromPeriodID: fromID, ToPeriodID: toID, OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero}
		from, err := tx.Periods().Get(ctx, fromID)
		if err != nil {
			return fmt.Errorf("source period %d: %w", fromID, err)
		}
		to, err := tx.Periods().Get(ctx, toID)
		if err != nil {
			return fmt.Errorf("target period %d: %w", toID, err)
		}
		if from.EndDate.After(to.StartDate) {
			return fmt.Errorf("%w: %s ends after %s starts", shared.ErrInvalidRollover, from.Code, to.Code)
		}
		if !from.IsClosed {
			if !opts.Force {
				return fmt.Errorf("%w: %s", shared.ErrPeriodNotClosed, from.Code)
			}
			report.Forced = true
			s.logger.Warn("rollover forced on open period",
				slog.Bool("forced", true),
				slog.String("from", from.Code),
				slog.String("to", to.Code),
				slog.Int64("actor_id", opts.ActorID))
		}
		return s.carry(ctx, tx, from, to, &report)
	})
	if err != nil {
		return Report{}, err
	}

	s.logger.Info("rollover completed",
		slog.Int64("from_period_id", fromID),
		slog.Int64("to_period_id", toID),
		slog.Int("accounts", report.AccountsScanned),
		slog.Int("changed", report.RowsChanged))
	if s.audit != nil {
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  opts.ActorID,
			Action:   "period.rollover",
			Entity:   "period",
			EntityID: fmt.Sprintf("%d", toID),
			Meta: map[string]any{
				"from_period_id": fromID,
				"rows_changed":   report.RowsChanged,
				"forced":         report.Forced,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", "period.rollover"), slog.Any("error", err))
		}
	}
	return report, nil
}

func (s *Service) carry(ctx context.Context, tx TxRepository, from, to periods.Period, report *Report) error {
	posting, err := tx.Accounts().ListPosting(ctx)
	if err != nil {
		return err
	}
	fromRows, err := indexRows(ctx, tx.TrialBalances(), from.ID)
	if err != nil {
		return err
	}
	toRows, err := indexRows(ctx, tx.TrialBalances(), to.ID)
	if err != nil {
		return err
	}
	sameYear := from.FiscalYear == to.FiscalYear
	for _, acc := range posting {
		report.AccountsScanned++
		src, ok := fromRows[acc.ID]
		if !ok {
			src = trialbalance.NewRow(from.ID, acc.ID)
		}
		opening := trialbalance.Opening{
			Debit:     src.EndingDebit,
			Credit:    src.EndingCredit,
			YTDDebit:  decimal.Zero,
			YTDCredit: decimal.Zero,
		}
		if sameYear {
			opening.YTDDebit = src.YTDDebit
			opening.YTDCredit = src.YTDCredit
		}
		if _, exists := toRows[acc.ID]; !exists && isZero(opening) {
			continue
		}
		changed, err := tx.TrialBalances().SetOpening(ctx, to.ID, acc.ID, opening)
		if err != nil {
			return fmt.Errorf("account %s: %w", acc.Code, err)
		}
		if changed {
			report.RowsChanged++
		}
		report.OpeningDebit = report.OpeningDebit.Add(opening.Debit)
		report.OpeningCredit = report.OpeningCredit.Add(opening.Credit)
	}
	return nil
}

func indexRows(ctx context.Context, repo trialbalance.Repository, periodID int64) (map[int64]trialbalance.Row, error) {
	rows, err := repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]trialbalance.Row, len(rows))
	for _, r := range rows {
		out[r.AccountID] = r
	}
	return out, nil
}

func isZero(o trialbalance.Opening) bool {
	return o.Debit.IsZero() && o.Credit.IsZero() && o.YTDDebit.IsZero() && o.YTDCredit.IsZero()
}
