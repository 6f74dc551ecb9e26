package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// TaskIdempotencyCleanup purges expired journal request keys.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// CleanupPayload carries the key retention window.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	if payload.Retention <= 0 {
		return nil, errors.New("jobs: cleanup retention must be positive")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// IdempotencyCleaner deletes request keys older than a retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceJobs handles housekeeping tasks.
type MaintenanceJobs struct {
	Keys    IdempotencyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handlers lists the maintenance task handlers.
func (m *MaintenanceJobs) Handlers() []TaskHandler {
	return []TaskHandler{{Type: TaskIdempotencyCleanup, Handler: m.HandleIdempotencyCleanup}}
}

// HandleIdempotencyCleanup executes TaskIdempotencyCleanup.
func (m *MaintenanceJobs) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) (err error) {
	if m == nil || m.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	metrics := m.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := m.Keys.Cleanup(ctx, payload.Retention)
	if err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("idempotency keys purged", slog.Int64("removed", removed), slog.Duration("retention", payload.Retention))
	return nil
}
