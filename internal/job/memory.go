package job

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Verify interface implementation at compile time
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in process memory. Finished jobs beyond the
// retention limit are evicted oldest first; queued and running jobs are
// never evicted.
type MemoryRepository struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	maxFinished int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithMaxFinished bounds the number of terminal jobs kept. Zero or less
// keeps all of them.
func WithMaxFinished(n int) MemoryOption {
	return func(r *MemoryRepository) {
		r.maxFinished = n
	}
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{jobs: make(map[string]*Job)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a copy of job.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	if job.ID == "" {
		return ErrMissingJobID
	}
	stored := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[stored.ID] = stored
	if stored.IsTerminal() {
		r.evictLocked()
	}
	return nil
}

// evictLocked drops the oldest finished jobs over the retention limit.
func (r *MemoryRepository) evictLocked() {
	if r.maxFinished <= 0 {
		return
	}
	var finished []*Job
	for _, j := range r.jobs {
		if j.IsTerminal() {
			finished = append(finished, j)
		}
	}
	if len(finished) <= r.maxFinished {
		return
	}
	slices.SortFunc(finished, func(a, b *Job) int {
		return cmp.Or(a.CompletedAt.Compare(b.CompletedAt), cmp.Compare(a.ID, b.ID))
	})
	for _, j := range finished[:len(finished)-r.maxFinished] {
		delete(r.jobs, j.ID)
	}
}

// FindByID returns a copy of the job with id.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns copies of the matching jobs, newest first.
func (r *MemoryRepository) List(_ context.Context, filter Filter) ([]*Job, error) {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.match(job) {
			result = append(result, job.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Job) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}
