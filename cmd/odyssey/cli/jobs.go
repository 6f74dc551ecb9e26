package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type jobEnqueuer interface {
	EnqueueRollover(ctx context.Context, payload jobs.RolloverPayload) (*asynq.TaskInfo, error)
	EnqueueReconcile(ctx context.Context, payload jobs.PeriodPayload) (*asynq.TaskInfo, error)
	EnqueueIntegrity(ctx context.Context, payload jobs.PeriodPayload) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    jobEnqueuer
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerRequest selects the task and its period arguments.
type TriggerRequest struct {
	Name     string
	PeriodID int64
	ToPeriod int64
	Force    bool
	ActorID  int64
}

// Trigger enqueues a supported job by task name.
func (c *JobsCLI) Trigger(ctx context.Context, req TriggerRequest) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch req.Name {
	case jobs.TaskLedgerRollover:
		return c.client.EnqueueRollover(ctx, jobs.RolloverPayload{
			FromPeriodID: req.PeriodID,
			ToPeriodID:   req.ToPeriod,
			Force:        req.Force,
			ActorID:      req.ActorID,
		})
	case jobs.TaskLedgerReconcile:
		return c.client.EnqueueReconcile(ctx, jobs.PeriodPayload{PeriodID: req.PeriodID, ActorID: req.ActorID})
	case jobs.TaskLedgerIntegrity:
		return c.client.EnqueueIntegrity(ctx, jobs.PeriodPayload{PeriodID: req.PeriodID, ActorID: req.ActorID})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", req.Name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for queue.
func (c *JobsCLI) InspectQueue(ctx context.Context, queue string) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(queue)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: queue}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, queue string, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(queue, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand(opts Options) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect ledger background jobs",
	}
	cmd.PersistentFlags().StringVar(&queue, "queue", jobs.QueueLedger, "queue to inspect")

	withJobs := func(fn func(*JobsCLI) error) error {
		cfg, _, err := loadRuntime(opts, "cli")
		if err != nil {
			return err
		}
		c, err := NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		return fn(c)
	}

	var req TriggerRequest
	trigger := &cobra.Command{
		Use:       "trigger TASK",
		Short:     "Enqueue a ledger task",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskLedgerRollover, jobs.TaskLedgerReconcile, jobs.TaskLedgerIntegrity},
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return withJobs(func(c *JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), req)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s (id %s)\n", info.Type, info.Queue, info.ID)
				return nil
			})
		},
	}
	trigger.Flags().Int64Var(&req.PeriodID, "period", 0, "period id (source period for rollover, 0 = current)")
	trigger.Flags().Int64Var(&req.ToPeriod, "to", 0, "target period id for rollover")
	trigger.Flags().BoolVar(&req.Force, "force", false, "allow rollover from an open period")
	trigger.Flags().Int64Var(&req.ActorID, "actor", 0, "user id recorded by the job")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(func(c *JobsCLI) error {
				s, err := c.InspectQueue(cmd.Context(), queue)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
				return nil
			})
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(func(c *JobsCLI) error {
				tasks, err := c.ListScheduled(cmd.Context(), queue, size)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
				}
				return nil
			})
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, stats, scheduled)
	return cmd
}
