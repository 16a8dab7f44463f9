package generation

import (
	"errors"
	"time"
)

// Status is the normalized state of an upstream job.
type Status string

const (
	// StatusPending indicates the job was accepted but not started.
	StatusPending Status = "pending"
	// StatusProcessing indicates the job is being rendered.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the video is ready.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the upstream gave up on the job.
	StatusFailed Status = "failed"
)

// IsTerminal returns true for completed and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusResult is the outcome of a single status check.
type StatusResult struct {
	Status Status `json:"status"`
	// VideoURL is set only when Status is StatusCompleted.
	VideoURL string `json:"video_url,omitempty"`
	// ErrorDetail carries the upstream reason for a failed job, if any.
	ErrorDetail string `json:"error,omitempty"`
}

// ErrInvalidTransition is returned when a terminal job is given a different status.
var ErrInvalidTransition = errors.New("invalid state transition")

// Job is one upstream video generation task.
type Job struct {
	// ID is the opaque identifier assigned upstream.
	ID string
	// Status is the last known status.
	Status Status
	// VideoURL is present iff Status is StatusCompleted.
	VideoURL string
	// Error is the upstream failure reason, if reported.
	Error string
	// ArchiveURL is the object storage copy of the video, once archived.
	ArchiveURL string
	// Request is the submission that created the job.
	Request GenerationRequest
	// CreatedAt is when the job id was received.
	CreatedAt time.Time
	// UpdatedAt is when the last status result was applied.
	UpdatedAt time.Time
}

// NewJob creates a pending job for an id returned by the generation endpoint.
func NewJob(id string, req GenerationRequest) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply records a status check result on the job.
// Once terminal, a job only accepts the same terminal status again.
func (j *Job) Apply(res StatusResult) error {
	if j.Status.IsTerminal() {
		if res.Status == j.Status {
			return nil
		}
		return ErrInvalidTransition
	}

	j.Status = res.Status
	j.UpdatedAt = time.Now()
	switch res.Status {
	case StatusCompleted:
		j.VideoURL = res.VideoURL
	case StatusFailed:
		j.Error = res.ErrorDetail
	}
	return nil
}

// IsTerminal returns true if the job reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a copy safe to hand out of a repository.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}
