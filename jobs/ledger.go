package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconcile"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/rollover"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// RolloverService runs the period rollover procedure.
type RolloverService interface {
	Rollover(ctx context.Context, fromID, toID int64, opts rollover.Options) (rollover.Report, error)
}

// ReconcileService runs sub-ledger reconciliation.
type ReconcileService interface {
	Reconcile(ctx context.Context, periodID int64, opts reconcile.Options) (reconcile.Result, error)
}

// IntegrityChecker runs the cross-aggregate check.
type IntegrityChecker interface {
	Check(ctx context.Context, periodID int64) (integrity.Report, error)
}

// PeriodFinder resolves the period covering an instant.
type PeriodFinder interface {
	FindOpenPeriodByDate(ctx context.Context, at time.Time) (periods.Period, error)
}

// LedgerJobs handles the period batch tasks.
type LedgerJobs struct {
	Rollover  RolloverService
	Reconcile ReconcileService
	Integrity IntegrityChecker
	Periods   PeriodFinder
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewLedgerJobs constructs the ledger job handlers.
func NewLedgerJobs(rs RolloverService, rc ReconcileService, ic IntegrityChecker, finder PeriodFinder, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerJobs {
	return &LedgerJobs{
		Rollover:  rs,
		Reconcile: rc,
		Integrity: ic,
		Periods:   finder,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers lists the task handlers for worker registration.
func (j *LedgerJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLedgerRollover, Handler: j.HandleRollover},
		{Type: TaskLedgerReconcile, Handler: j.HandleReconcile},
		{Type: TaskLedgerIntegrity, Handler: j.HandleIntegrity},
	}
}

// HandleRollover executes TaskLedgerRollover.
func (j *LedgerJobs) HandleRollover(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Rollover == nil {
		return errors.New("ledger rollover: handler not configured")
	}
	var payload RolloverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerRollover)
	defer func() { err = tracker.End(err) }()

	logger := j.log(TaskLedgerRollover).With(
		slog.Int64("from_period_id", payload.FromPeriodID),
		slog.Int64("to_period_id", payload.ToPeriodID))
	report, err := j.Rollover.Rollover(ctx, payload.FromPeriodID, payload.ToPeriodID,
		rollover.Options{Force: payload.Force, ActorID: payload.ActorID})
	if err != nil {
		logger.Error("rollover failed", slog.Any("error", err))
		return permanent(err)
	}
	logger.Info("rollover job completed", slog.Int("rows_changed", report.RowsChanged), slog.Bool("forced", report.Forced))
	return nil
}

// HandleReconcile executes TaskLedgerReconcile. Per-account failures fail the task so it is retried.
func (j *LedgerJobs) HandleReconcile(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reconcile == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	var payload PeriodPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerReconcile)
	defer func() { err = tracker.End(err) }()

	logger := j.log(TaskLedgerReconcile)
	periodID, err := j.resolvePeriod(ctx, payload.PeriodID)
	if err != nil {
		logger.Error("resolve period", slog.Any("error", err))
		return permanent(err)
	}
	result, err := j.Reconcile.Reconcile(ctx, periodID, reconcile.Options{ActorID: payload.ActorID})
	if err != nil {
		logger.Error("reconcile failed", slog.Int64("period_id", periodID), slog.Any("error", err))
		return permanent(err)
	}
	j.metrics().AddAdjustments(len(result.AdjustmentJournalIDs))
	logger.Info("reconcile job completed",
		slog.String("period", result.PeriodCode),
		slog.Int("adjusted", len(result.AdjustmentJournalIDs)),
		slog.Int("failed", result.Failed))
	if result.Failed > 0 {
		return fmt.Errorf("ledger reconcile: %d accounts failed in %s", result.Failed, result.PeriodCode)
	}
	return nil
}

// HandleIntegrity executes TaskLedgerIntegrity. Findings are reported, not retried.
func (j *LedgerJobs) HandleIntegrity(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Integrity == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload PeriodPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() { err = tracker.End(err) }()

	logger := j.log(TaskLedgerIntegrity)
	periodID, err := j.resolvePeriod(ctx, payload.PeriodID)
	if err != nil {
		logger.Error("resolve period", slog.Any("error", err))
		return permanent(err)
	}
	report, err := j.Integrity.Check(ctx, periodID)
	if err != nil {
		logger.Error("integrity check failed", slog.Int64("period_id", periodID), slog.Any("error", err))
		return err
	}
	counts := make(map[integrity.Kind]int)
	for _, issue := range report.Issues {
		counts[issue.Kind]++
		logger.Warn("ledger integrity issue",
			slog.String("kind", string(issue.Kind)),
			slog.Int64("account_id", issue.AccountID),
			slog.Int64("journal_id", issue.JournalID),
			slog.String("detail", issue.Detail))
	}
	for kind, n := range counts {
		j.metrics().AddIntegrityIssues(string(kind), n)
	}
	return nil
}

func (j *LedgerJobs) resolvePeriod(ctx context.Context, periodID int64) (int64, error) {
	if periodID > 0 {
		return periodID, nil
	}
	if j.Periods == nil {
		return 0, errors.New("ledger jobs: period finder not configured")
	}
	period, err := j.Periods.FindOpenPeriodByDate(ctx, j.now())
	if err != nil {
		return 0, err
	}
	return period.ID, nil
}

func (j *LedgerJobs) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerJobs) log(job string) *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *LedgerJobs) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *LedgerJobs) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
