package generation

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// DefaultMemoryCapacity is the number of jobs kept when no capacity is given.
const DefaultMemoryCapacity = 1000

// MemoryRepository is a size-bounded in-memory Repository.
// When full, saving a new job evicts the oldest one by CreatedAt.
type MemoryRepository struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	capacity int
}

// NewMemoryRepository creates an in-memory repository holding at most
// capacity jobs. A non-positive capacity uses DefaultMemoryCapacity.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRepository{
		jobs:     make(map[string]*Job),
		capacity: capacity,
	}
}

// Save stores a clone of job.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists && len(r.jobs) >= r.capacity {
		r.evictOldestLocked()
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// FindByID returns a clone of the stored job.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns clones of all jobs, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result, nil
}

// Update applies fn to a copy of the stored job under the write lock.
// The copy replaces the stored job only if fn succeeds and changed it.
func (r *MemoryRepository) Update(_ context.Context, id string, fn func(*Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job := stored.Clone()
	if err := fn(job); err != nil {
		return err
	}
	if *job != *stored {
		r.jobs[id] = job
	}
	return nil
}

// Len returns the number of stored jobs.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *MemoryRepository) evictOldestLocked() {
	var oldestID string
	for id, job := range r.jobs {
		if oldestID == "" || job.CreatedAt.Before(r.jobs[oldestID].CreatedAt) {
			oldestID = id
		}
	}
	if oldestID != "" {
		delete(r.jobs, oldestID)
	}
}
