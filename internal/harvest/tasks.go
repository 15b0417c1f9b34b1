package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"menuharvest/internal/logger"
	"menuharvest/internal/platform/tasks"
)

// BatchTaskPayload is the asynq payload for one harvest batch.
type BatchTaskPayload struct {
	BatchID string   `json:"batch_id"`
	Sources []Source `json:"sources"`
}

// Enqueuer accepts batch submissions and hands them to the queue. The
// batch record is created pending before enqueue so a status poll right
// after submission already resolves.
type Enqueuer struct {
	tasks      *tasks.Client
	jobs       JobStore
	maxRetries int
	log        *logger.Logger
}

func NewEnqueuer(t *tasks.Client, jobs JobStore, maxRetries int) *Enqueuer {
	return &Enqueuer{tasks: t, jobs: jobs, maxRetries: maxRetries, log: logger.New("HarvestEnqueue")}
}

// EnqueueBatch registers a pending batch and queues it for the worker.
func (e *Enqueuer) EnqueueBatch(ctx context.Context, sources []Source) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("batch must contain at least one source")
	}
	for i, src := range sources {
		if src.URL == "" {
			return "", fmt.Errorf("source %d missing url", i)
		}
		if src.ID == "" {
			sources[i].ID = src.URL
		}
	}

	batchID := uuid.New().String()
	batch := &BatchStatus{
		BatchID:   batchID,
		Status:    StatusPending,
		Sources:   len(sources),
		CreatedAt: time.Now(),
	}
	if err := e.jobs.SaveBatch(ctx, batch); err != nil {
		return "", fmt.Errorf("save batch: %w", err)
	}

	payload, err := json.Marshal(BatchTaskPayload{BatchID: batchID, Sources: sources})
	if err != nil {
		return "", fmt.Errorf("marshal batch payload: %w", err)
	}
	task := asynq.NewTask(tasks.TaskTypeHarvestBatch, payload)
	if err := e.tasks.Enqueue(task, "default", e.maxRetries); err != nil {
		return "", fmt.Errorf("enqueue batch %s: %w", batchID, err)
	}
	e.log.LogInfof("enqueued batch %s with %d sources", batchID, len(sources))
	return batchID, nil
}

// HandleBatchTask is the asynq handler for TaskTypeHarvestBatch.
func (c *Coordinator) HandleBatchTask(ctx context.Context, t *asynq.Task) error {
	var payload BatchTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal batch payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := c.RunBatch(ctx, payload.BatchID, payload.Sources)
	return err
}
