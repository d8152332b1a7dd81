package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/turnkey/turnkey/internal/jobs"
	"github.com/turnkey/turnkey/internal/unitturn"
	"github.com/turnkey/turnkey/internal/unitturn/export"
)

// InstanceSource loads and advances saved unit turns.
type InstanceSource interface {
	Get(ctx context.Context, id string) (*unitturn.Instance, error)
	TransitionStatus(ctx context.Context, id string, next unitturn.Status) (*unitturn.Instance, error)
}

// ExportSink stores rendered exports.
type ExportSink interface {
	Store(ctx context.Context, name string, data []byte) error
}

// DirSink writes exports into a local directory.
type DirSink struct {
	Dir string
}

// Store writes data to Dir/name, creating Dir when needed.
func (s DirSink) Store(ctx context.Context, name string, data []byte) error {
	if s.Dir == "" {
		return errors.New("jobs: export directory not configured")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, filepath.Base(name)), data, 0o644)
}

// UnitTurnExportJob renders completed unit turns and marks them exported.
type UnitTurnExportJob struct {
	Source  InstanceSource
	Sink    ExportSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewUnitTurnExportJob wires dependencies for the export handler.
func NewUnitTurnExportJob(source InstanceSource, sink ExportSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *UnitTurnExportJob {
	return &UnitTurnExportJob{Source: source, Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle processes TaskUnitTurnExport tasks.
func (j *UnitTurnExportJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil || j.Sink == nil {
		return errors.New("unit turn export: handler not configured")
	}
	var payload UnitTurnExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.InstanceID == "" {
		return fmt.Errorf("unit turn export: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskUnitTurnExport)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("instance_id", payload.InstanceID))

	inst, err := j.Source.Get(ctx, payload.InstanceID)
	if err != nil {
		if errors.Is(err, unitturn.ErrNotFound) {
			logger.Warn("export skipped, instance missing")
			return fmt.Errorf("unit turn export: %w", asynq.SkipRetry)
		}
		return err
	}
	if inst.Status != unitturn.StatusCompleted && inst.Status != unitturn.StatusExported {
		logger.Warn("export skipped, instance not completed", slog.String("status", string(inst.Status)))
		return fmt.Errorf("unit turn export: status %s: %w", inst.Status, asynq.SkipRetry)
	}

	raw, err := export.Workbook(inst)
	if err != nil {
		return err
	}
	if err := j.Sink.Store(ctx, export.FileName(inst.ID), raw); err != nil {
		logger.Error("store export", slog.Any("error", err))
		return err
	}
	if inst.Status == unitturn.StatusCompleted {
		if _, err := j.Source.TransitionStatus(ctx, inst.ID, unitturn.StatusExported); err != nil {
			return err
		}
	}
	j.Metrics.AddExportBytes(len(raw))
	logger.Info("unit turn exported", slog.Int("bytes", len(raw)), slog.Int("line_items", len(inst.LineItems)))
	return nil
}

func (j *UnitTurnExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
