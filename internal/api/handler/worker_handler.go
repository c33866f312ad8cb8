package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgrid/pipeline/internal/api/dto"
	"github.com/leadgrid/pipeline/internal/queue"
)

// Worker boundary. These endpoints mirror queue.WorkerStore one to one so
// remote workers get the same semantics as workers talking to the database
// directly.

// ClaimJob handles POST /api/v1/workers/jobs/claim
// Responds with the claimed job, or JSON null when nothing is eligible.
func (h *JobHandler) ClaimJob(c *gin.Context) {
	var req dto.ClaimJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	for _, jt := range req.Types {
		if !jt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown job type: " + string(jt),
			})
			return
		}
	}
	types := req.Types
	if len(types) == 0 {
		types = queue.JobTypes
	}

	job, err := h.store.ClaimNext(c.Request.Context(), types, req.WorkerID)
	if err != nil {
		respondStoreError(c, h.logger, err, "claim job")
		return
	}

	if job != nil {
		h.logger.Info("Job claimed",
			slog.String("job_id", job.ID),
			slog.String("worker_id", req.WorkerID),
		)
	}

	c.JSON(http.StatusOK, job)
}

// MarkJobProcessing handles POST /api/v1/workers/jobs/processing
func (h *JobHandler) MarkJobProcessing(c *gin.Context) {
	var req dto.JobIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.store.MarkProcessing(c.Request.Context(), req.JobID); err != nil {
		respondStoreError(c, h.logger, err, "mark job processing")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CompleteJob handles POST /api/v1/workers/jobs/complete
func (h *JobHandler) CompleteJob(c *gin.Context) {
	var req dto.CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.store.Complete(c.Request.Context(), req.JobID, req.Result); err != nil {
		respondStoreError(c, h.logger, err, "complete job")
		return
	}

	h.logger.Info("Job completed", slog.String("job_id", req.JobID))

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FailJob handles POST /api/v1/workers/jobs/fail
// Applies the retry policy, or fails terminally when permanent is set.
func (h *JobHandler) FailJob(c *gin.Context) {
	var req dto.FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	var err error
	if req.Permanent {
		err = h.store.FailPermanent(c.Request.Context(), req.JobID, req.Error)
	} else {
		err = h.store.Fail(c.Request.Context(), req.JobID, req.Error)
	}
	if err != nil {
		respondStoreError(c, h.logger, err, "fail job")
		return
	}

	h.logger.Info("Job failure recorded",
		slog.String("job_id", req.JobID),
		slog.Bool("permanent", req.Permanent),
	)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateRunProgress handles POST /api/v1/workers/scraper-runs/progress
// Adds the reported deltas to the run's counters.
func (h *JobHandler) UpdateRunProgress(c *gin.Context) {
	var req dto.RunProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	err := h.store.UpdateRunProgress(c.Request.Context(), req.ID, queue.RunProgress{
		CompletedJobs:  req.CompletedJobs,
		FailedJobs:     req.FailedJobs,
		LeadsFound:     req.LeadsFound,
		CompaniesFound: req.CompaniesFound,
		Status:         req.Status,
	})
	if err != nil {
		respondStoreError(c, h.logger, err, "update run progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
