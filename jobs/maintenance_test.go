package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

type cleanerStub struct {
	olderThan time.Duration
	err       error
}

func (c *cleanerStub) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.olderThan = olderThan
	return 4, c.err
}

func TestIdempotencyCleanup(t *testing.T) {
	cleaner := &cleanerStub{}
	jobs := &MaintenanceJobs{Keys: cleaner, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	task, err := NewIdempotencyCleanupTask(CleanupPayload{Retention: 72 * time.Hour})
	require.NoError(t, err)

	require.NoError(t, jobs.HandleIdempotencyCleanup(context.Background(), task))
	require.Equal(t, 72*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db down")
	require.Error(t, jobs.HandleIdempotencyCleanup(context.Background(), task))
}

func TestIdempotencyCleanupRejectsBadPayload(t *testing.T) {
	_, err := NewIdempotencyCleanupTask(CleanupPayload{})
	require.Error(t, err)

	jobs := &MaintenanceJobs{Keys: &cleanerStub{}}
	err = jobs.HandleIdempotencyCleanup(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
