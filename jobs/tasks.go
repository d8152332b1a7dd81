package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUnitTurnExport renders a saved unit turn to XLSX and marks it exported.
	TaskUnitTurnExport = "unitturn:export"
)

// UnitTurnExportPayload identifies the instance to export.
type UnitTurnExportPayload struct {
	InstanceID  string    `json:"instance_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// UnitTurnExportTaskID is the task id shared by every export request for an instance.
func UnitTurnExportTaskID(instanceID string) string {
	return TaskUnitTurnExport + ":" + instanceID
}

// NewUnitTurnExportTask constructs an Asynq task. Tasks for the same instance are
// deduplicated while one is pending.
func NewUnitTurnExportTask(payload UnitTurnExportPayload) (*asynq.Task, error) {
	if payload.InstanceID == "" {
		return nil, errors.New("jobs: instance id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUnitTurnExport, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(UnitTurnExportTaskID(payload.InstanceID)),
		asynq.MaxRetry(5),
	), nil
}
