package dto

import (
	"encoding/json"

	"github.com/leadgrid/pipeline/internal/queue"
)

type CreateJobRequest struct {
	Type         string          `json:"type" binding:"required"`
	Payload      json.RawMessage `json:"payload" binding:"required"`
	Priority     *int            `json:"priority"`
	MaxAttempts  *int            `json:"max_attempts"`
	ScraperRunID *string         `json:"scraper_run_id"`
}

type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ListJobsRequest struct {
	Type     string `form:"type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []queue.Job `json:"jobs"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type CreateRunRequest struct {
	Type      string          `json:"type" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Config    json.RawMessage `json:"config"`
	TotalJobs int             `json:"total_jobs"`
}

type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type CancelRunResponse struct {
	RunID         string `json:"run_id"`
	JobsCancelled int    `json:"jobs_cancelled"`
}

// Worker boundary requests. Field names are shared with the remote worker
// store client; changing one side breaks the other.

type ClaimJobRequest struct {
	Types    []queue.JobType `json:"types"`
	WorkerID string          `json:"worker_id" binding:"required"`
}

type JobIDRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

type CompleteJobRequest struct {
	JobID  string          `json:"job_id" binding:"required"`
	Result json.RawMessage `json:"result"`
}

type FailJobRequest struct {
	JobID     string `json:"job_id" binding:"required"`
	Error     string `json:"error" binding:"required"`
	Permanent bool   `json:"permanent"`
}

type RunProgressRequest struct {
	ID             string           `json:"id" binding:"required"`
	CompletedJobs  int              `json:"completed_jobs"`
	FailedJobs     int              `json:"failed_jobs"`
	LeadsFound     int              `json:"leads_found"`
	CompaniesFound int              `json:"companies_found"`
	Status         *queue.RunStatus `json:"status"`
}
