package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadgrid/pipeline/internal/api/dto"
	"github.com/leadgrid/pipeline/internal/queue"
)

// CreateRun handles POST /api/v1/scraper-runs
// Registers a scraping session so its fan-out jobs report into one place.
func (h *JobHandler) CreateRun(c *gin.Context) {
	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	runType := queue.RunType(req.Type)
	switch runType {
	case queue.RunGoogleMaps, queue.RunGoogleAds, queue.RunLinkedInAds:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown run type: " + req.Type,
		})
		return
	}

	runID, err := h.store.CreateRun(c.Request.Context(), queue.CreateRunParams{
		Type:      runType,
		Name:      req.Name,
		Config:    req.Config,
		TotalJobs: req.TotalJobs,
	})
	if err != nil {
		respondStoreError(c, h.logger, err, "create scraper run")
		return
	}

	h.logger.Info("Scraper run created",
		slog.String("run_id", runID),
		slog.String("type", req.Type),
		slog.String("name", req.Name),
	)

	c.JSON(http.StatusCreated, dto.CreateRunResponse{
		RunID:  runID,
		Status: string(queue.RunStatusPending),
	})
}

// GetRun handles GET /api/v1/scraper-runs/:run_id
func (h *JobHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondStoreError(c, h.logger, err, "get scraper run")
		return
	}

	c.JSON(http.StatusOK, run)
}

// CancelRun handles POST /api/v1/scraper-runs/:run_id/cancel
// Marks the run failed and cancels its jobs still waiting for a worker.
func (h *JobHandler) CancelRun(c *gin.Context) {
	runID := c.Param("run_id")

	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	cancelled, err := h.store.CancelRun(c.Request.Context(), runID)
	if err != nil {
		respondStoreError(c, h.logger, err, "cancel scraper run")
		return
	}

	h.logger.Info("Scraper run cancelled",
		slog.String("run_id", runID),
		slog.Int("jobs_cancelled", cancelled),
	)

	c.JSON(http.StatusOK, dto.CancelRunResponse{
		RunID:         runID,
		JobsCancelled: cancelled,
	})
}
