// Package postgres implements queue.Store over PostgreSQL. The claim uses a
// single UPDATE with a FOR UPDATE SKIP LOCKED subselect so concurrent
// workers never observe and claim the same pending job; selection order is
// pushed down to the composite (status, priority DESC, created_at ASC)
// index.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/leadgrid/pipeline/internal/queue"
	"github.com/leadgrid/pipeline/shared/postgresql"
)

// Store is the production queue.Store.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store over an established PostgreSQL client.
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return NewStoreFromDB(pg.GetDB(), logger)
}

// NewStoreFromDB creates a Store over a raw sqlx handle. Used by tests.
func NewStoreFromDB(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const jobColumns = `job_id, job_type, status, priority, payload, attempts, max_attempts,
	worker_id, scraper_run_id, result, error_message, claimed_at, completed_at, created_at, updated_at`

func (s *Store) Create(ctx context.Context, params queue.CreateJobParams) (string, error) {
	priority := queue.DefaultPriority
	if params.Priority != nil {
		priority = *params.Priority
	}
	maxAttempts := queue.DefaultMaxAttempts
	if params.MaxAttempts != nil {
		maxAttempts = *params.MaxAttempts
	}
	payload := params.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	jobID := uuid.New().String()
	query := `
		INSERT INTO jobs (job_id, job_type, status, priority, payload, attempts, max_attempts, scraper_run_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW(), NOW())
	`

	_, err := s.db.ExecContext(ctx, query,
		jobID, params.Type, queue.StatusPending, priority, []byte(payload), maxAttempts, params.ScraperRunID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", jobID),
		slog.String("job_type", string(params.Type)),
		slog.Int("priority", priority),
	)

	return jobID, nil
}

func (s *Store) ClaimNext(ctx context.Context, types []queue.JobType, workerID string) (*queue.Job, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    claimed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = (
			SELECT job_id FROM jobs
			WHERE status = $3
			  AND job_type = ANY($4)
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	var job queue.Job
	err := s.db.QueryRowxContext(ctx, query,
		queue.StatusClaimed, workerID, queue.StatusPending, pq.Array(typeNames),
	).StructScan(&job)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("worker_id", workerID),
		slog.String("job_type", string(job.Type)),
		slog.Int("priority", job.Priority),
	)

	return &job, nil
}

func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	// Idempotent: matching an already-processing row is a no-op update.
	query := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE job_id = $2 AND status IN ($3, $1)
	`

	result, err := s.db.ExecContext(ctx, query, queue.StatusProcessing, jobID, queue.StatusClaimed)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	return s.checkAffected(ctx, result, jobID)
}

func (s *Store) Complete(ctx context.Context, jobID string, resultPayload json.RawMessage) error {
	query := `
		UPDATE jobs
		SET status = $1, result = $2, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $3 AND status NOT IN ($4, $5, $6)
	`

	var raw []byte
	if len(resultPayload) > 0 {
		raw = []byte(resultPayload)
	}

	result, err := s.db.ExecContext(ctx, query,
		queue.StatusCompleted, raw, jobID,
		queue.StatusCompleted, queue.StatusFailed, queue.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if err := s.checkAffected(ctx, result, jobID); err != nil {
		return err
	}

	s.logger.Info("Job completed", slog.String("job_id", jobID))
	return nil
}

func (s *Store) Fail(ctx context.Context, jobID string, errMsg string) error {
	// Retry policy in one statement: while attempts+1 < max_attempts the job
	// returns to pending with the claim cleared; otherwise it goes terminal.
	query := `
		UPDATE jobs
		SET attempts = attempts + 1,
		    error_message = $2,
		    status = CASE WHEN attempts + 1 < max_attempts THEN $3 ELSE $4 END,
		    worker_id = CASE WHEN attempts + 1 < max_attempts THEN NULL ELSE worker_id END,
		    claimed_at = CASE WHEN attempts + 1 < max_attempts THEN NULL ELSE claimed_at END,
		    completed_at = CASE WHEN attempts + 1 < max_attempts THEN NULL ELSE NOW() END,
		    updated_at = NOW()
		WHERE job_id = $1 AND status NOT IN ($4, $5, $6)
		RETURNING status, attempts
	`

	var status queue.Status
	var attempts int
	err := s.db.QueryRowContext(ctx, query,
		jobID, errMsg, queue.StatusPending, queue.StatusFailed,
		queue.StatusCompleted, queue.StatusCancelled,
	).Scan(&status, &attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.classifyMiss(ctx, jobID)
		}
		return fmt.Errorf("failed to fail job: %w", err)
	}

	s.logger.Info("Job failure recorded",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
		slog.Int("attempts", attempts),
		slog.String("error", errMsg),
	)

	return nil
}

func (s *Store) FailPermanent(ctx context.Context, jobID string, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $3 AND status NOT IN ($1, $4, $5)
	`

	result, err := s.db.ExecContext(ctx, query,
		queue.StatusFailed, errMsg, jobID, queue.StatusCompleted, queue.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to fail job permanently: %w", err)
	}
	if err := s.checkAffected(ctx, result, jobID); err != nil {
		return err
	}

	s.logger.Warn("Job failed permanently",
		slog.String("job_id", jobID),
		slog.String("error", errMsg),
	)
	return nil
}

func (s *Store) Cancel(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query,
		queue.StatusCancelled, jobID, queue.StatusPending, queue.StatusClaimed,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return s.checkAffected(ctx, result, jobID)
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job queue.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, filter queue.JobFilter) ([]queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Type != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	if filter.PageSize > 0 {
		// One extra row signals another page.
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var jobs []queue.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) Stats(ctx context.Context) (*queue.Stats, error) {
	stats := &queue.Stats{
		ByStatus: make(map[queue.Status]int),
		ByType:   make(map[queue.JobType]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status queue.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT job_type, COUNT(*) FROM jobs GROUP BY job_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var jobType queue.JobType
		var count int
		if err := typeRows.Scan(&jobType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats.ByType[jobType] = count
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate type counts: %w", err)
	}

	return stats, nil
}

func (s *Store) CreateRun(ctx context.Context, params queue.CreateRunParams) (string, error) {
	config := params.Config
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}

	runID := uuid.New().String()
	query := `
		INSERT INTO scraper_runs (run_id, run_type, name, status, config, total_jobs,
			completed_jobs, failed_jobs, leads_found, companies_found, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, 0, NOW())
	`

	_, err := s.db.ExecContext(ctx, query,
		runID, params.Type, params.Name, queue.RunStatusPending, []byte(config), params.TotalJobs,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create scraper run: %w", err)
	}

	return runID, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*queue.ScraperRun, error) {
	query := `
		SELECT run_id, run_type, name, status, config, total_jobs, completed_jobs,
		       failed_jobs, leads_found, companies_found, started_at, completed_at, created_at
		FROM scraper_runs
		WHERE run_id = $1
	`

	var run queue.ScraperRun
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get scraper run: %w", err)
	}
	return &run, nil
}

func (s *Store) UpdateRunProgress(ctx context.Context, runID string, progress queue.RunProgress) error {
	// Counter fields are deltas added to the existing values.
	query := `
		UPDATE scraper_runs
		SET completed_jobs = completed_jobs + $2,
		    failed_jobs = failed_jobs + $3,
		    leads_found = leads_found + $4,
		    companies_found = companies_found + $5,
		    status = COALESCE($6::text, status),
		    started_at = CASE WHEN $6::text = $7 AND started_at IS NULL THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $6::text IN ($8, $9) THEN NOW() ELSE completed_at END
		WHERE run_id = $1
	`

	var status *string
	if progress.Status != nil {
		v := string(*progress.Status)
		status = &v
	}

	result, err := s.db.ExecContext(ctx, query,
		runID, progress.CompletedJobs, progress.FailedJobs, progress.LeadsFound, progress.CompaniesFound,
		status, queue.RunStatusRunning, queue.RunStatusCompleted, queue.RunStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return queue.ErrRunNotFound
	}
	return nil
}

func (s *Store) CancelRun(ctx context.Context, runID string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runResult, err := tx.ExecContext(ctx,
		`UPDATE scraper_runs SET status = $1, completed_at = NOW() WHERE run_id = $2`,
		queue.RunStatusFailed, runID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel scraper run: %w", err)
	}
	affected, err := runResult.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, queue.ErrRunNotFound
	}

	jobResult, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE scraper_run_id = $2 AND status IN ($3, $4)
	`, queue.StatusCancelled, runID, queue.StatusPending, queue.StatusClaimed)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel run jobs: %w", err)
	}
	cancelled, err := jobResult.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run cancellation: %w", err)
	}

	s.logger.Info("Scraper run cancelled",
		slog.String("run_id", runID),
		slog.Int64("cancelled_jobs", cancelled),
	)

	return int(cancelled), nil
}

// checkAffected maps a zero-row update to the right domain error.
func (s *Store) checkAffected(ctx context.Context, result sql.Result, jobID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return s.classifyMiss(ctx, jobID)
	}
	return nil
}

// classifyMiss distinguishes a missing job from one in a status the mutation
// does not apply to.
func (s *Store) classifyMiss(ctx context.Context, jobID string) error {
	var status queue.Status
	err := s.db.GetContext(ctx, &status, `SELECT status FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queue.ErrJobNotFound
		}
		return fmt.Errorf("failed to check job status: %w", err)
	}
	return queue.ErrJobTerminal
}
