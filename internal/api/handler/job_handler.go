package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadgrid/pipeline/internal/api/dto"
	"github.com/leadgrid/pipeline/internal/queue"
)

// CreateJob handles POST /api/v1/jobs
// Enqueues a new background job after validating its type and payload.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobType := queue.JobType(req.Type)
	if _, err := queue.DecodePayload(jobType, req.Payload); err != nil {
		h.logger.Warn("Rejected job payload",
			slog.String("type", req.Type),
			slog.String("error", err.Error()),
		)
		respondStoreError(c, h.logger, err, "create job")
		return
	}

	jobID, err := h.store.Create(c.Request.Context(), queue.CreateJobParams{
		Type:         jobType,
		Priority:     req.Priority,
		Payload:      req.Payload,
		MaxAttempts:  req.MaxAttempts,
		ScraperRunID: req.ScraperRunID,
	})
	if err != nil {
		respondStoreError(c, h.logger, err, "create job")
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", jobID),
		slog.String("type", req.Type),
	)

	h.nudgeWorkers(c, jobID, req.Type)

	c.JSON(http.StatusCreated, dto.CreateJobResponse{
		JobID:  jobID,
		Status: string(queue.StatusPending),
	})
}

// nudgeWorkers announces a new job over RabbitMQ. Workers poll the store, so
// a failed publish costs at most one poll interval of latency.
func (h *JobHandler) nudgeWorkers(c *gin.Context, jobID, jobType string) {
	if h.rabbitClient == nil {
		return
	}

	body, err := json.Marshal(gin.H{"job_id": jobID, "type": jobType})
	if err != nil {
		return
	}
	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Warn("Failed to publish job nudge",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondStoreError(c, h.logger, err, "get job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and keyset pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Type != "" && !queue.JobType(req.Type).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown job type: " + req.Type,
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), queue.JobFilter{
		Type:     queue.JobType(req.Type),
		Status:   queue.Status(req.Status),
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondStoreError(c, h.logger, err, "list jobs")
		return
	}

	// The store returns one extra row past the page to signal more results.
	var nextCursor string
	if len(jobs) > req.PageSize {
		jobs = jobs[:req.PageSize]
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&queue.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that has not yet started processing.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if err := h.store.Cancel(c.Request.Context(), jobID); err != nil {
		respondStoreError(c, h.logger, err, "cancel job")
		return
	}

	h.logger.Info("Job cancelled", slog.String("job_id", jobID))

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": string(queue.StatusCancelled),
	})
}

// GetStats handles GET /api/v1/jobs/stats
// Returns queue depth grouped by status and by type.
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		respondStoreError(c, h.logger, err, "get stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
