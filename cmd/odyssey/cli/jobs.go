package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-crm/odyssey-crm/internal/app"
	"github.com/odyssey-crm/odyssey-crm/jobs"
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name. The invalidate job needs a
// company id argument.
func (c *JobsCLI) Trigger(ctx context.Context, name string, args []string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	switch name {
	case jobs.TaskDashboardSweep:
		task = jobs.NewDashboardSweepTask()
	case jobs.TaskDashboardInvalidate:
		if len(args) != 1 {
			return nil, fmt.Errorf("jobs cli: %s needs a company id", name)
		}
		companyID, err := uuid.Parse(args[0])
		if err != nil {
			return nil, fmt.Errorf("jobs cli: company id: %w", err)
		}
		if task, err = jobs.NewDashboardInvalidateTask(companyID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
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

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	withCLI := func(fn func(cmd *cobra.Command, c *JobsCLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			c := NewJobsCLI(cfg.RedisAddr)
			defer c.Close()
			return fn(cmd, c, args)
		}
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "trigger <job> [company-id]",
		Short: "Enqueue dashboard:sweep or dashboard:invalidate",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withCLI(func(cmd *cobra.Command, c *JobsCLI, args []string) error {
			info, err := c.Trigger(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: withCLI(func(cmd *cobra.Command, c *JobsCLI, _ []string) error {
			stats, err := c.InspectQueue()
			if err != nil {
				return err
			}
			return writeStats(cmd.OutOrStdout(), stats)
		}),
	})
	return cmd
}

func writeStats(out io.Writer, stats QueueStats) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return tw.Flush()
}
