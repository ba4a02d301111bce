package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/microfin/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
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

// BuildTask prepares a supported job by name. Release worksheets carry a loan
// batch and are enqueued through the API instead.
func BuildTask(name string, lookbackDays int) (*asynq.Task, error) {
	switch name {
	case jobs.TaskLedgerIntegrity:
		return jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{LookbackDays: lookbackDays})
	case jobs.TaskReportCacheInvalidate:
		return jobs.NewCacheInvalidateTask(jobs.CacheInvalidatePayload{Reason: "manual"})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, lookbackDays int) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := BuildTask(name, lookbackDays)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault))
}

// TriggerCommand parses trigger flags and enqueues the named job.
func (c *JobsCLI) TriggerCommand(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()
	if len(args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: job name is required")
		return 2
	}
	fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	lookback := fs.Int("lookback", 1, "days checked by ledger:integrity")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	info, err := c.Trigger(ctx, args[0], *lookback)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return 0
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (jobs.QueueStats, error) {
	if c == nil || c.inspector == nil {
		return jobs.QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return jobs.QueueStats{}, err
	}
	return jobs.StatsFromInfo(info), nil
}

// StatsCommand prints the default queue statistics.
func (c *JobsCLI) StatsCommand(ctx context.Context, opts Options) int {
	opts = opts.withDefaults()
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue %s: pending=%d active=%d retry=%d archived=%d processed=%d failed=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Retry, stats.Archived, stats.Processed, stats.Failed)
	return 0
}
