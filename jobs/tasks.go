package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries exclusive period batch jobs.
	QueueLedger = "ledger"

	// TaskLedgerRollover carries trial balance endings into the next period.
	TaskLedgerRollover = "ledger:rollover"
	// TaskLedgerReconcile reconciles sub-ledger valuations against the GL.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskLedgerIntegrity cross-checks journals and aggregates of a period.
	TaskLedgerIntegrity = "ledger:integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RolloverPayload names the period pair of a rollover run.
type RolloverPayload struct {
	FromPeriodID int64 `json:"from_period_id"`
	ToPeriodID   int64 `json:"to_period_id"`
	Force        bool  `json:"force,omitempty"`
	ActorID      int64 `json:"actor_id,omitempty"`
}

// PeriodPayload targets a single period. A zero PeriodID means the period covering the run time.
type PeriodPayload struct {
	PeriodID int64 `json:"period_id,omitempty"`
	ActorID  int64 `json:"actor_id,omitempty"`
}

// NewRolloverTask constructs the rollover task.
func NewRolloverTask(payload RolloverPayload) (*asynq.Task, error) {
	if payload.FromPeriodID <= 0 || payload.ToPeriodID <= 0 {
		return nil, errors.New("jobs: rollover requires both period ids")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerRollover, body, asynq.Queue(QueueLedger), asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// NewReconcileTask constructs the reconciliation task.
func NewReconcileTask(payload PeriodPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueLedger), asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// NewIntegrityTask constructs the integrity check task.
func NewIntegrityTask(payload PeriodPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// permanent marks failures that retrying cannot fix.
func permanent(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrPeriodNotClosed),
		errors.Is(err, shared.ErrInvalidRollover),
		errors.Is(err, shared.ErrPeriodNotFound),
		errors.Is(err, shared.ErrPeriodClosed),
		errors.Is(err, shared.ErrNoOpenPeriod),
		errors.Is(err, shared.ErrMappingNotFound):
		return errors.Join(err, asynq.SkipRetry)
	default:
		return err
	}
}
