package harvest

import (
	"context"
	"fmt"
	"time"

	rds "menuharvest/internal/platform/redis"
)

// Status is the lifecycle of a scrape job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source identifies one retailer menu to harvest. Fresh forces a live
// render even when a cached page is available.
type Source struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Profile string `json:"profile,omitempty"`
	Fresh   bool   `json:"fresh,omitempty"`
}

// Job is one unit of work within a batch. Created by the coordinator,
// mutated by the retry orchestrator on each attempt, terminal on success
// or dead-letter hand-off.
type Job struct {
	ID           string     `json:"job_id"`
	BatchID      string     `json:"batch_id"`
	Source       Source     `json:"source"`
	Status       Status     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	ItemsScraped int        `json:"items_scraped"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Summary aggregates one batch run.
type Summary struct {
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	ItemsScraped int `json:"items_scraped"`
	DeadLettered int `json:"dead_lettered"`
}

// BatchStatus is the batch-level record exposed over the API.
type BatchStatus struct {
	BatchID     string     `json:"batch_id"`
	Status      Status     `json:"status"`
	Sources     int        `json:"sources"`
	Summary     Summary    `json:"summary"`
	JobIDs      []string   `json:"job_ids,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobStore persists job and batch state. Backed by redis in production,
// faked in tests.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	SaveBatch(ctx context.Context, batch *BatchStatus) error
	GetBatch(ctx context.Context, batchID string) (*BatchStatus, error)
}

// RedisJobStore keeps job state in redis with TTLs matching the job's
// lifecycle: terminal records live longer for operator inspection.
type RedisJobStore struct{ redis *rds.Service }

func NewRedisJobStore(redis *rds.Service) *RedisJobStore { return &RedisJobStore{redis: redis} }

func (s *RedisJobStore) SaveJob(ctx context.Context, job *Job) error {
	return s.redis.CacheSet(ctx, jobKey(job.ID), job, ttl(job.Status))
}

func (s *RedisJobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := s.redis.CacheGet(ctx, jobKey(id), &job); err != nil {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return &job, nil
}

func (s *RedisJobStore) SaveBatch(ctx context.Context, batch *BatchStatus) error {
	return s.redis.CacheSet(ctx, batchKey(batch.BatchID), batch, ttl(batch.Status))
}

func (s *RedisJobStore) GetBatch(ctx context.Context, batchID string) (*BatchStatus, error) {
	var batch BatchStatus
	if err := s.redis.CacheGet(ctx, batchKey(batchID), &batch); err != nil {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}
	return &batch, nil
}

func jobKey(id string) string   { return "harvest:job:" + id }
func batchKey(id string) string { return "harvest:batch:" + id }

func ttl(s Status) int {
	if s == StatusSucceeded || s == StatusFailed {
		return 3600
	}
	return 600
}
