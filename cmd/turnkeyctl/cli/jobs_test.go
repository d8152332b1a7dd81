package cli

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnkey/turnkey/jobs"
)

func TestTriggerExportDeduplicatesPendingTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewJobsCLI(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	payload := jobs.UnitTurnExportPayload{InstanceID: "inst-1", RequestedBy: "ops", RequestedAt: time.Now()}

	info, err := c.TriggerExport(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskUnitTurnExport, info.Type)
	assert.Equal(t, jobs.QueueDefault, info.Queue)

	_, err = c.TriggerExport(ctx, payload)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = c.TriggerExport(ctx, jobs.UnitTurnExportPayload{})
	assert.Error(t, err)
}

func TestTriggerExportReplacesArchivedTask(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	c := NewJobsCLI(opts)
	t.Cleanup(func() { _ = c.Close() })
	inspector := asynq.NewInspector(opts)
	t.Cleanup(func() { _ = inspector.Close() })

	ctx := context.Background()
	payload := jobs.UnitTurnExportPayload{InstanceID: "inst-1", RequestedBy: "ops", RequestedAt: time.Now()}
	_, err := c.TriggerExport(ctx, payload)
	require.NoError(t, err)
	require.NoError(t, inspector.ArchiveTask(jobs.QueueDefault, jobs.UnitTurnExportTaskID("inst-1")))

	info, err := c.TriggerExport(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStatePending, info.State)

	stats, err := c.InspectQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Archived)
}

func TestNilJobsCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.TriggerExport(context.Background(), jobs.UnitTurnExportPayload{InstanceID: "x"})
	assert.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	assert.Error(t, err)
	_, err = c.ListRetries(context.Background(), 5)
	assert.Error(t, err)
}
