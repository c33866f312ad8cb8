package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgrid/pipeline/internal/queue"
	"github.com/leadgrid/pipeline/shared/postgresql"
	"github.com/leadgrid/pipeline/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Store  queue.Store
	// DBClient is nil with the in-memory backend; the health endpoint then
	// skips the database probe.
	DBClient *postgresql.Client
	// RabbitClient is nil when the broker is disabled; job creation then
	// skips the nudge publish.
	RabbitClient *rabbitmq.Client
	ServiceName  string
}

// JobHandler handles job and scraper-run HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	store        queue.Store
	rabbitClient *rabbitmq.Client
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		store:        deps.Store,
		rabbitClient: deps.RabbitClient,
	}
}

// respondStoreError translates store errors into HTTP status codes.
func respondStoreError(c *gin.Context, logger *slog.Logger, err error, action string) {
	switch {
	case errors.Is(err, queue.ErrJobNotFound), errors.Is(err, queue.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrJobTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrUnknownJobType), errors.Is(err, queue.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("Store operation failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}
