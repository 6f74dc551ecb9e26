package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Client submits ledger tasks to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueRollover enqueues a rollover run. A second request for the same
// period pair is rejected with asynq.ErrDuplicateTask while the first is pending.
func (c *Client) EnqueueRollover(ctx context.Context, payload RolloverPayload) (*asynq.TaskInfo, error) {
	task, err := NewRolloverTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(time.Hour))
}

// EnqueueReconcile enqueues a reconciliation run.
func (c *Client) EnqueueReconcile(ctx context.Context, payload PeriodPayload) (*asynq.TaskInfo, error) {
	task, err := NewReconcileTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(time.Hour))
}

// EnqueueIntegrity enqueues an integrity check.
func (c *Client) EnqueueIntegrity(ctx context.Context, payload PeriodPayload) (*asynq.TaskInfo, error) {
	task, err := NewIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("jobs: enqueue integrity: %w", err)
	}
	return info, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
