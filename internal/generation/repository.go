package generation

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository keeps the jobs a process has seen. Implementations are
// ephemeral; nothing here survives a restart.
type Repository interface {
	// Save stores a job, replacing any previous record with the same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its upstream identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]*Job, error)

	// Update runs fn on the stored job and keeps the result if fn succeeds.
	// Concurrent updates of the same job are serialized.
	// Returns ErrJobNotFound if the job does not exist, or fn's error.
	Update(ctx context.Context, id string, fn func(*Job) error) error
}
