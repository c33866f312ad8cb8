package worker

import (
	"context"

	"github.com/leadgrid/pipeline/internal/queue"
)

// Processor performs the work for one job type. A returned error fails the
// job and runs it through the store's retry policy; the returned value is
// stored as the job result and must be JSON-serializable. Business outcomes
// like "email is invalid" are results, not errors.
type Processor func(ctx context.Context, job *queue.Job) (any, error)

// Registry maps job types to processors. It is populated once at startup
// and read-only afterwards, so it needs no locking.
type Registry struct {
	processors map[queue.JobType]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[queue.JobType]Processor)}
}

// Register binds a processor to a job type, replacing any previous binding.
func (r *Registry) Register(jobType queue.JobType, p Processor) {
	r.processors[jobType] = p
}

// Get returns the processor for jobType, if one is registered.
func (r *Registry) Get(jobType queue.JobType) (Processor, bool) {
	p, ok := r.processors[jobType]
	return p, ok
}

// Types returns the job types with a registered processor; these are the
// types the worker claims.
func (r *Registry) Types() []queue.JobType {
	types := make([]queue.JobType, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	return types
}
