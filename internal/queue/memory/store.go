// Package memory implements queue.Store in process memory. It backs local
// development and the claim-protocol tests; production deployments use the
// postgres store. Claim selection scans and sorts the pending set per call,
// which is fine at modest queue depth but is an explicit scalability
// ceiling compared to the index-backed postgres claim.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadgrid/pipeline/internal/queue"
)

// Store is an in-memory queue.Store. All operations take one mutex, which is
// what makes ClaimNext atomic with respect to concurrent callers.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*queue.Job
	runs map[string]*queue.ScraperRun

	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*queue.Job),
		runs: make(map[string]*queue.ScraperRun),
		now:  time.Now,
	}
}

func (s *Store) Create(ctx context.Context, params queue.CreateJobParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority := queue.DefaultPriority
	if params.Priority != nil {
		priority = *params.Priority
	}
	maxAttempts := queue.DefaultMaxAttempts
	if params.MaxAttempts != nil {
		maxAttempts = *params.MaxAttempts
	}

	now := s.now()
	job := &queue.Job{
		ID:           uuid.New().String(),
		Type:         params.Type,
		Status:       queue.StatusPending,
		Priority:     priority,
		Payload:      params.Payload,
		Attempts:     0,
		MaxAttempts:  maxAttempts,
		ScraperRunID: params.ScraperRunID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.jobs[job.ID] = job

	return job.ID, nil
}

func (s *Store) ClaimNext(ctx context.Context, types []queue.JobType, workerID string) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[queue.JobType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var eligible []*queue.Job
	for _, job := range s.jobs {
		if job.Status == queue.StatusPending && wanted[job.Type] {
			eligible = append(eligible, job)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	// Priority descending, then createdAt ascending: strict FIFO within a
	// priority band.
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	job := eligible[0]
	now := s.now()
	job.Status = queue.StatusClaimed
	job.WorkerID = &workerID
	job.ClaimedAt = &now
	job.UpdatedAt = now

	copied := *job
	return &copied, nil
}

func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}
	switch job.Status {
	case queue.StatusClaimed:
		job.Status = queue.StatusProcessing
		job.UpdatedAt = s.now()
		return nil
	case queue.StatusProcessing:
		return nil
	default:
		return queue.ErrJobTerminal
	}
}

func (s *Store) Complete(ctx context.Context, jobID string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return queue.ErrJobTerminal
	}

	now := s.now()
	job.Status = queue.StatusCompleted
	job.Result = result
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *Store) Fail(ctx context.Context, jobID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return queue.ErrJobTerminal
	}

	now := s.now()
	job.Attempts++
	job.Error = &errMsg
	job.UpdatedAt = now

	if job.Attempts < job.MaxAttempts {
		// Retry edge: back to pending with the claim cleared.
		job.Status = queue.StatusPending
		job.WorkerID = nil
		job.ClaimedAt = nil
		return nil
	}

	job.Status = queue.StatusFailed
	job.CompletedAt = &now
	return nil
}

func (s *Store) FailPermanent(ctx context.Context, jobID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return queue.ErrJobTerminal
	}

	now := s.now()
	job.Status = queue.StatusFailed
	job.Error = &errMsg
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *Store) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}
	if job.Status != queue.StatusPending && job.Status != queue.StatusClaimed {
		return queue.ErrJobTerminal
	}

	now := s.now()
	job.Status = queue.StatusCancelled
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *Store) ListJobs(ctx context.Context, filter queue.JobFilter) ([]queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []queue.Job
	for _, job := range s.jobs {
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil {
			// Keyset position: (created_at, job_id) strictly before cursor.
			if job.CreatedAt.After(filter.Cursor.CreatedAt) {
				continue
			}
			if job.CreatedAt.Equal(filter.Cursor.CreatedAt) && job.ID >= filter.Cursor.JobID {
				continue
			}
		}
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})

	if filter.PageSize > 0 && len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}
	return jobs, nil
}

func (s *Store) Stats(ctx context.Context) (*queue.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &queue.Stats{
		ByStatus: make(map[queue.Status]int),
		ByType:   make(map[queue.JobType]int),
	}
	for _, job := range s.jobs {
		stats.ByStatus[job.Status]++
		stats.ByType[job.Type]++
		stats.Total++
	}
	return stats, nil
}

func (s *Store) CreateRun(ctx context.Context, params queue.CreateRunParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &queue.ScraperRun{
		ID:        uuid.New().String(),
		Type:      params.Type,
		Name:      params.Name,
		Status:    queue.RunStatusPending,
		Config:    params.Config,
		TotalJobs: params.TotalJobs,
		CreatedAt: s.now(),
	}
	s.runs[run.ID] = run
	return run.ID, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*queue.ScraperRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, queue.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (s *Store) UpdateRunProgress(ctx context.Context, runID string, progress queue.RunProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return queue.ErrRunNotFound
	}

	run.CompletedJobs += progress.CompletedJobs
	run.FailedJobs += progress.FailedJobs
	run.LeadsFound += progress.LeadsFound
	run.CompaniesFound += progress.CompaniesFound

	if progress.Status != nil {
		run.Status = *progress.Status
		now := s.now()
		if *progress.Status == queue.RunStatusRunning && run.StartedAt == nil {
			run.StartedAt = &now
		}
		if *progress.Status == queue.RunStatusCompleted || *progress.Status == queue.RunStatusFailed {
			run.CompletedAt = &now
		}
	}
	return nil
}

func (s *Store) CancelRun(ctx context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return 0, queue.ErrRunNotFound
	}

	now := s.now()
	run.Status = queue.RunStatusFailed
	run.CompletedAt = &now

	cancelled := 0
	for _, job := range s.jobs {
		if job.ScraperRunID == nil || *job.ScraperRunID != runID {
			continue
		}
		if job.Status == queue.StatusPending || job.Status == queue.StatusClaimed {
			job.Status = queue.StatusCancelled
			job.CompletedAt = &now
			job.UpdatedAt = now
			cancelled++
		}
	}
	return cancelled, nil
}
