package queue

import (
	"encoding/json"
	"time"
)

// JobType identifies the kind of work a job carries and selects its
// processor and payload shape.
type JobType string

const (
	TypeScrapeGoogleMaps  JobType = "scrape_google_maps"
	TypeEnrichLead        JobType = "enrich_lead"
	TypeEnrichCompany     JobType = "enrich_company"
	TypeValidateEmail     JobType = "validate_email"
	TypeScrapeGoogleAds   JobType = "scrape_google_ads"
	TypeScrapeLinkedInAds JobType = "scrape_linkedin_ads"
	TypeGenerateAnalytics JobType = "generate_analytics"
	TypePushToCRM         JobType = "push_to_crm"
	TypePushToInstantly   JobType = "push_to_instantly"
)

// JobTypes lists every known job type.
var JobTypes = []JobType{
	TypeScrapeGoogleMaps,
	TypeEnrichLead,
	TypeEnrichCompany,
	TypeValidateEmail,
	TypeScrapeGoogleAds,
	TypeScrapeLinkedInAds,
	TypeGenerateAnalytics,
	TypePushToCRM,
	TypePushToInstantly,
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	for _, known := range JobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the job lifecycle state:
//
//	pending -> claimed -> processing -> completed
//	                           |
//	                           +-> pending (retry, attempts < max_attempts)
//	                           +-> failed  (terminal)
//	pending/claimed -> cancelled (terminal)
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// DefaultPriority is assigned when a producer does not specify one.
const DefaultPriority = 5

// DefaultMaxAttempts bounds job-level retries.
const DefaultMaxAttempts = 3

// Job is a unit of queued work. WorkerID and ClaimedAt are set only while the
// job is claimed or processing; CompletedAt is set on any terminal
// transition. Terminal jobs are never deleted.
type Job struct {
	ID           string          `json:"job_id" db:"job_id"`
	Type         JobType         `json:"type" db:"job_type"`
	Status       Status          `json:"status" db:"status"`
	Priority     int             `json:"priority" db:"priority"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Attempts     int             `json:"attempts" db:"attempts"`
	MaxAttempts  int             `json:"max_attempts" db:"max_attempts"`
	WorkerID     *string         `json:"worker_id,omitempty" db:"worker_id"`
	ScraperRunID *string         `json:"scraper_run_id,omitempty" db:"scraper_run_id"`
	Result       json.RawMessage `json:"result,omitempty" db:"result"`
	Error        *string         `json:"error,omitempty" db:"error_message"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// RunType identifies the scraper behind a run.
type RunType string

const (
	RunGoogleMaps  RunType = "google_maps"
	RunGoogleAds   RunType = "google_ads"
	RunLinkedInAds RunType = "linkedin_ads"
)

// RunStatus is the scraper-run lifecycle state.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScraperRun aggregates progress over the jobs a scraping session fans out.
// The queue only increments its counters; it never inspects the config.
type ScraperRun struct {
	ID             string          `json:"run_id" db:"run_id"`
	Type           RunType         `json:"type" db:"run_type"`
	Name           string          `json:"name" db:"name"`
	Status         RunStatus       `json:"status" db:"status"`
	Config         json.RawMessage `json:"config" db:"config"`
	TotalJobs      int             `json:"total_jobs" db:"total_jobs"`
	CompletedJobs  int             `json:"completed_jobs" db:"completed_jobs"`
	FailedJobs     int             `json:"failed_jobs" db:"failed_jobs"`
	LeadsFound     int             `json:"leads_found" db:"leads_found"`
	CompaniesFound int             `json:"companies_found" db:"companies_found"`
	StartedAt      *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// RunProgress carries delta increments for a scraper run's counters. All
// numeric fields are added to the existing counters, not written over them.
// A nil Status leaves the run status untouched.
type RunProgress struct {
	CompletedJobs  int        `json:"completed_jobs,omitempty"`
	FailedJobs     int        `json:"failed_jobs,omitempty"`
	LeadsFound     int        `json:"leads_found,omitempty"`
	CompaniesFound int        `json:"companies_found,omitempty"`
	Status         *RunStatus `json:"status,omitempty"`
}

// Stats summarizes queue depth by status and type.
type Stats struct {
	ByStatus map[Status]int  `json:"by_status"`
	ByType   map[JobType]int `json:"by_type"`
	Total    int             `json:"total"`
}
