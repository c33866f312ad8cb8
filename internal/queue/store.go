package queue

import (
	"context"
	"encoding/json"
	"time"
)

// CreateJobParams are the producer-side inputs for a new job.
type CreateJobParams struct {
	Type         JobType
	Priority     *int // nil -> DefaultPriority
	Payload      json.RawMessage
	MaxAttempts  *int // nil -> DefaultMaxAttempts
	ScraperRunID *string
}

// CreateRunParams are the inputs for a new scraper run.
type CreateRunParams struct {
	Type      RunType
	Name      string
	Config    json.RawMessage
	TotalJobs int
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Type     JobType
	Status   Status
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset-pagination position for ListJobs (created_at desc,
// job_id desc).
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// WorkerStore is the slice of the store a worker process needs. It is the
// whole coordination surface between workers: ClaimNext must be atomic so
// that concurrent callers never claim the same job.
type WorkerStore interface {
	// ClaimNext atomically selects, among pending jobs whose type is in
	// types, the one with the highest priority, breaking ties by earliest
	// creation time, and transitions it to claimed with workerID stamped.
	// Returns (nil, nil) when no eligible job exists.
	ClaimNext(ctx context.Context, types []JobType, workerID string) (*Job, error)

	// MarkProcessing moves claimed -> processing. Idempotent when already
	// processing.
	MarkProcessing(ctx context.Context, jobID string) error

	// Complete moves processing -> completed and stores the result.
	Complete(ctx context.Context, jobID string, result json.RawMessage) error

	// Fail increments attempts and applies the retry policy: back to pending
	// with worker_id/claimed_at cleared while attempts < max_attempts,
	// terminal failed otherwise. The error message is stored either way.
	Fail(ctx context.Context, jobID string, errMsg string) error

	// FailPermanent forces terminal failed regardless of remaining attempts.
	// Used for jobs that can never succeed, e.g. an unregistered job type.
	FailPermanent(ctx context.Context, jobID string, errMsg string) error

	// UpdateRunProgress adds the delta counters to a scraper run and
	// optionally moves its status.
	UpdateRunProgress(ctx context.Context, runID string, progress RunProgress) error
}

// Store is the full transactional authority over job state: WorkerStore plus
// the producer and dashboard operations served by the API.
type Store interface {
	WorkerStore

	// Create inserts a pending job and returns its id. Payload must already
	// be validated against the job type.
	Create(ctx context.Context, params CreateJobParams) (string, error)

	// Cancel forces terminal cancelled. Only pending and claimed jobs can be
	// cancelled; anything else returns ErrJobTerminal.
	Cancel(ctx context.Context, jobID string) error

	// GetJob returns a job by id.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs returns up to PageSize+1 jobs matching the filter, newest
	// first; the extra row signals another page.
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)

	// Stats counts jobs by status and by type.
	Stats(ctx context.Context) (*Stats, error)

	// CreateRun inserts a pending scraper run and returns its id.
	CreateRun(ctx context.Context, params CreateRunParams) (string, error)

	// GetRun returns a scraper run by id.
	GetRun(ctx context.Context, runID string) (*ScraperRun, error)

	// CancelRun marks the run failed and cancels its jobs still pending or
	// claimed; completed, processing and terminal jobs are untouched.
	// Returns the number of jobs cancelled.
	CancelRun(ctx context.Context, runID string) (int, error)
}
