package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/turnkey/turnkey/jobs"
)

// JobsCLI wraps manual management helpers for the export queue.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the helpers against the provided Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
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

// TriggerExport enqueues an export for a saved unit turn. An archived export for the same
// instance is replaced; one still waiting or running is reported as ErrAlreadyQueued.
func (c *JobsCLI) TriggerExport(ctx context.Context, payload jobs.UnitTurnExportPayload) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	info, err := jobs.SubmitUnitTurnExport(ctx, c.client, c.inspector, payload)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

// ErrAlreadyQueued reports that an export for the instance is already waiting.
var ErrAlreadyQueued = errors.New("jobs cli: export already queued")

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
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
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

// ListRetries returns export tasks waiting to be retried, most useful after a storage outage.
func (c *JobsCLI) ListRetries(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListRetryTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
