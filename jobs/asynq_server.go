package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	now       func() time.Time
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{
		client:    asynq.NewClient(redisOpts),
		inspector: asynq.NewInspector(redisOpts),
		now:       time.Now,
	}, nil
}

// EnqueueUnitTurnExport enqueues an export of the given instance. An export already waiting
// or running for the same instance is treated as success.
func (c *Client) EnqueueUnitTurnExport(ctx context.Context, instanceID, requestedBy string) error {
	_, err := SubmitUnitTurnExport(ctx, c.client, c.inspector, UnitTurnExportPayload{
		InstanceID:  instanceID,
		RequestedBy: requestedBy,
		RequestedAt: c.now().UTC(),
	})
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	err := c.inspector.Close()
	if closeErr := c.client.Close(); closeErr != nil {
		err = closeErr
	}
	return err
}

// SubmitUnitTurnExport enqueues an export task. Export tasks share one id per instance, and
// asynq keeps archived and completed tasks under that id, so a finished task is deleted
// and the export enqueued again. asynq.ErrTaskIDConflict means an export for the instance
// is still pending, scheduled, retrying or running.
func SubmitUnitTurnExport(ctx context.Context, client *asynq.Client, inspector *asynq.Inspector, payload UnitTurnExportPayload) (*asynq.TaskInfo, error) {
	task, err := NewUnitTurnExportTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := client.EnqueueContext(ctx, task)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return info, err
	}

	id := UnitTurnExportTaskID(payload.InstanceID)
	existing, inspectErr := inspector.GetTaskInfo(QueueDefault, id)
	switch {
	case errors.Is(inspectErr, asynq.ErrTaskNotFound):
	case inspectErr != nil:
		return nil, fmt.Errorf("inspect export task: %w", inspectErr)
	case existing.State == asynq.TaskStateArchived, existing.State == asynq.TaskStateCompleted:
		if err := inspector.DeleteTask(QueueDefault, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return nil, fmt.Errorf("delete finished export task: %w", err)
		}
	default:
		return nil, err
	}
	return client.EnqueueContext(ctx, task)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue":"default","pending":0}`))
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	pending := 0
	queueName := QueueDefault
	if info != nil {
		pending = int(info.Pending)
		queueName = info.Queue
	}
	_, _ = w.Write([]byte(`{"queue":"` + queueName + `","pending":` + itoa(pending) + `}`))
}

func itoa(i int) string {
	return strconv.FormatInt(int64(i), 10)
}
