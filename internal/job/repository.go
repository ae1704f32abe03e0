package job

import (
	"context"
	"errors"
)

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrMissingJobID is returned when saving a job without an ID.
	ErrMissingJobID = errors.New("job has no ID")
)

// Filter narrows a List call. The zero Filter matches every job.
type Filter struct {
	// Status keeps only jobs in this status when set.
	Status Status
	// Limit caps the number of jobs returned when positive.
	Limit int
}

func (f Filter) match(j *Job) bool {
	return f.Status == "" || j.Status == f.Status
}

// Repository stores cut jobs. Implementations hand out copies, so callers
// must Save a job for a change to become visible.
type Repository interface {
	// Save inserts or replaces the job.
	Save(ctx context.Context, job *Job) error
	// FindByID returns ErrJobNotFound when no job has the id.
	FindByID(ctx context.Context, id string) (*Job, error)
	// List returns the jobs matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Job, error)
}
