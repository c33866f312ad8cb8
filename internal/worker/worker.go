package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadgrid/pipeline/internal/queue"
)

// DefaultPollInterval is the sleep between claim attempts on an empty queue.
const DefaultPollInterval = 2 * time.Second

// Config holds worker configuration.
type Config struct {
	Logger       *slog.Logger
	Store        queue.WorkerStore
	Registry     *Registry
	WorkerID     string
	PollInterval time.Duration
	// Types limits which job types this worker claims. Empty means every
	// known type; claimed jobs without a registered processor are failed
	// permanently.
	Types []queue.JobType
	// Nudge optionally wakes an idle worker before the poll interval
	// elapses, e.g. when the API announces a new job over RabbitMQ.
	Nudge <-chan struct{}
}

// Worker runs one fully sequential poll loop: claim, dispatch, report.
// Scale-out is horizontal — run more worker processes, each with its own id;
// the store's atomic claim is the only coordination between them.
type Worker struct {
	logger       *slog.Logger
	store        queue.WorkerStore
	registry     *Registry
	workerID     string
	pollInterval time.Duration
	types        []queue.JobType
	nudge        <-chan struct{}
}

// New creates a worker from cfg.
func New(cfg *Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	types := cfg.Types
	if len(types) == 0 {
		types = queue.JobTypes
	}

	return &Worker{
		logger:       cfg.Logger,
		store:        cfg.Store,
		registry:     cfg.Registry,
		workerID:     cfg.WorkerID,
		pollInterval: pollInterval,
		types:        types,
		nudge:        cfg.Nudge,
	}
}

// Run polls until ctx is canceled. A failure in any single job never
// terminates the loop; plumbing errors (the store being unreachable) are
// logged and followed by a longer backoff sleep.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started",
		slog.String("worker_id", w.workerID),
		slog.Duration("poll_interval", w.pollInterval),
		slog.Int("job_types", len(w.types)),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Worker stopping", slog.String("worker_id", w.workerID))
			return nil
		}

		job, err := w.store.ClaimNext(ctx, w.types, w.workerID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to claim job",
				slog.String("worker_id", w.workerID),
				slog.String("error", err.Error()),
			)
			w.sleep(ctx, 2*w.pollInterval)
			continue
		}

		if job == nil {
			w.idle(ctx)
			continue
		}

		w.processJob(ctx, job)
	}
}

// processJob runs one claimed job through its processor and reports the
// outcome. Errors reporting back to the store are logged, never raised.
func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	w.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Int("priority", job.Priority),
		slog.Int("attempts", job.Attempts),
	)

	if err := w.store.MarkProcessing(ctx, job.ID); err != nil {
		w.logger.Error("Failed to mark job processing",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		w.reportFailure(ctx, job.ID, fmt.Sprintf("failed to mark processing: %s", err))
		return
	}

	processor, ok := w.registry.Get(job.Type)
	if !ok {
		// No processor will ever appear for this type mid-flight; retrying
		// would requeue a permanently unprocessable job.
		msg := fmt.Sprintf("no processor for job type: %s", job.Type)
		w.logger.Error("Unregistered job type",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
		)
		if err := w.store.FailPermanent(ctx, job.ID, msg); err != nil {
			w.logger.Error("Failed to fail job permanently",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	result, err := processor(ctx, job)
	if err != nil {
		w.logger.Error("Job failed",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
			slog.String("error", err.Error()),
		)
		w.reportFailure(ctx, job.ID, err.Error())
		return
	}

	var raw json.RawMessage
	if result != nil {
		raw, err = json.Marshal(result)
		if err != nil {
			w.reportFailure(ctx, job.ID, fmt.Sprintf("failed to encode result: %s", err))
			return
		}
	}

	if err := w.store.Complete(ctx, job.ID, raw); err != nil {
		w.logger.Error("Failed to complete job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
	)
}

func (w *Worker) reportFailure(ctx context.Context, jobID, msg string) {
	if err := w.store.Fail(ctx, jobID, msg); err != nil {
		w.logger.Error("Failed to report job failure",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// idle waits out the poll interval, or less if a nudge arrives.
func (w *Worker) idle(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-w.nudge:
		w.logger.Debug("Woken by nudge", slog.String("worker_id", w.workerID))
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
