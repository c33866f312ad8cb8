package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgrid/pipeline/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes.
// Everything under /api/v1 requires the shared-secret bearer token; /health
// is open for load balancer probes.
func SetupRouter(deps *handler.Dependencies, sharedSecret string) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": deps.ServiceName,
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.ServiceName,
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(sharedSecret))
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Enqueue a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/stats - Queue depth by status and type
			jobs.GET("/stats", jobHandler.GetStats)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		runs := v1.Group("/scraper-runs")
		{
			// POST /api/v1/scraper-runs - Register a scraping session
			runs.POST("", jobHandler.CreateRun)

			// GET /api/v1/scraper-runs/:run_id - Get run progress
			runs.GET("/:run_id", jobHandler.GetRun)

			// POST /api/v1/scraper-runs/:run_id/cancel - Cancel a run
			runs.POST("/:run_id/cancel", jobHandler.CancelRun)
		}

		workers := v1.Group("/workers")
		{
			// Claim protocol, mirrored by the remote worker store
			workers.POST("/jobs/claim", jobHandler.ClaimJob)
			workers.POST("/jobs/processing", jobHandler.MarkJobProcessing)
			workers.POST("/jobs/complete", jobHandler.CompleteJob)
			workers.POST("/jobs/fail", jobHandler.FailJob)
			workers.POST("/scraper-runs/progress", jobHandler.UpdateRunProgress)
		}
	}

	return r
}
