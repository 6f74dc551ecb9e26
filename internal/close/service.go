package close

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconcile"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Reconciler posts sub-ledger adjustments for a period.
type Reconciler interface {
	Reconcile(ctx context.Context, periodID int64, opts reconcile.Options) (reconcile.Result, error)
}

// IntegrityChecker cross-checks the period aggregates.
type IntegrityChecker interface {
	Check(ctx context.Context, periodID int64) (integrity.Report, error)
}

type PeriodLocker interface {
	Lock(ctx context.Context, periodIDs ...int64) (release func(context.Context), err error)
}

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service orchestrates the period close.
type Service struct {
	repo      Repository
	reconcile Reconciler
	integrity IntegrityChecker
	locker    PeriodLocker
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, reconciler Reconciler, checker IntegrityChecker, locker PeriodLocker, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		reconcile: reconciler,
		integrity: checker,
		locker:    locker,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Close reconciles the period, verifies its aggregates and marks it closed. Adjustments
// posted by the reconciliation stay even when a later step fails. Closing a closed period
// is a no-op.
func (s *Service) Close(ctx context.Context, periodID int64, opts Options) (Run, error) {
	period, err := s.repo.Periods().Get(ctx, periodID)
	if err != nil {
		return Run{}, err
	}
	run := Run{PeriodID: period.ID, PeriodCode: period.Code}
	if period.IsClosed {
		run.Closed, run.AlreadyClosed, run.ClosedAt = true, true, period.ClosedAt
		return run, nil
	}

	run.Checklist = append(run.Checklist, s.reconcileStep(ctx, periodID, opts, &run))
	run.Checklist = append(run.Checklist, s.integrityStep(ctx, periodID))
	if !run.Complete() {
		s.logger.Warn("period close blocked", slog.Int64("period_id", periodID), slog.Any("checklist", run.Checklist))
		return run, fmt.Errorf("%w: period %s", ErrChecklistIncomplete, period.Code)
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, periodID)
		if err != nil {
			return run, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	at := s.now().UTC()
	changed, err := s.repo.MarkClosed(ctx, periodID, opts.ActorID, at)
	if err != nil {
		return run, fmt.Errorf("close period %s: %w", period.Code, err)
	}
	run.Closed = true
	if !changed {
		run.AlreadyClosed = true
		return run, nil
	}
	run.ClosedAt = &at

	if s.audit != nil {
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  opts.ActorID,
			Action:   "period.close",
			Entity:   "period",
			EntityID: strconv.FormatInt(periodID, 10),
			Meta: map[string]any{
				"period_code": period.Code,
				"adjustments": len(run.Adjustments),
			},
			At: at,
		}); err != nil {
			s.logger.Warn("audit period close", slog.Int64("period_id", periodID), slog.Any("error", err))
		}
	}
	s.logger.Info("period closed", slog.Int64("period_id", periodID), slog.String("period_code", period.Code),
		slog.Int("adjustments", len(run.Adjustments)))
	return run, nil
}

func (s *Service) reconcileStep(ctx context.Context, periodID int64, opts Options, run *Run) ChecklistItem {
	item := ChecklistItem{Code: StepSubledgerRecon, Label: "Sub-ledgers reconciled"}
	result, err := s.reconcile.Reconcile(ctx, periodID, reconcile.Options{ActorID: opts.ActorID})
	if err != nil {
		item.Status, item.Detail = ChecklistStatusFailed, err.Error()
		return item
	}
	run.Adjustments = result.AdjustmentJournalIDs
	if result.Failed > 0 {
		item.Status = ChecklistStatusFailed
		item.Detail = fmt.Sprintf("%d account(s) could not be reconciled", result.Failed)
		return item
	}
	item.Status = ChecklistStatusDone
	item.Detail = fmt.Sprintf("%d account(s) checked, %d adjustment(s)", len(result.Items), len(result.AdjustmentJournalIDs))
	return item
}

func (s *Service) integrityStep(ctx context.Context, periodID int64) ChecklistItem {
	item := ChecklistItem{Code: StepIntegrity, Label: "Ledger aggregates consistent"}
	report, err := s.integrity.Check(ctx, periodID)
	switch {
	case err != nil:
		item.Status, item.Detail = ChecklistStatusFailed, err.Error()
	case !report.OK():
		item.Status = ChecklistStatusFailed
		item.Detail = fmt.Sprintf("%d issue(s), first: %s", len(report.Issues), report.Issues[0].Detail)
	default:
		item.Status = ChecklistStatusDone
		item.Detail = fmt.Sprintf("%d journal(s) checked", report.JournalsChecked)
	}
	return item
}
