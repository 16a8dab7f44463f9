// Package server provides the HTTP relay in front of the video generation API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
)

// GenerateVideoRequest is the HTTP request body for starting a generation.
// It mirrors the upstream body; the "30 sec"/"1 min" label is also accepted
// in place of duration_sec.
type GenerateVideoRequest struct {
	// Prompt describes the video to generate.
	Prompt string `json:"prompt"`
	// DurationSec is 30 or 60.
	DurationSec *int `json:"duration_sec,omitempty"`
	// Duration is "30 sec" or "1 min". Ignored when DurationSec is set.
	Duration string `json:"duration,omitempty"`
	// Orientation is "landscape" or "portrait".
	Orientation string `json:"orientation"`
}

// toDomain converts the DTO into a generation request.
func (r GenerateVideoRequest) toDomain() (generation.GenerationRequest, error) {
	req := generation.GenerationRequest{
		Prompt:      r.Prompt,
		Duration:    generation.Duration(r.Duration),
		Orientation: generation.Orientation(r.Orientation),
	}
	if r.DurationSec != nil {
		d, ok := generation.DurationFromSeconds(*r.DurationSec)
		if !ok {
			return req, generation.NewValidationError("duration_sec", "duration_sec must be one of: 30, 60")
		}
		req.Duration = d
	}
	return req, nil
}

// GenerateVideoResponse is the HTTP response after starting a generation.
type GenerateVideoResponse struct {
	Data GenerateVideoData `json:"data"`
}

// GenerateVideoData carries the upstream job id.
type GenerateVideoData struct {
	VideoID string `json:"video_id"`
}

// JobIDParam is a job id taken from the path or query string.
type JobIDParam struct {
	ID string `json:"id" validate:"required,max=256"`
}

// StatusResponse is one status check result.
type StatusResponse struct {
	// Status is pending, processing, completed or failed.
	Status string `json:"status"`
	// VideoURL is set when Status is completed.
	VideoURL string `json:"video_url,omitempty"`
	// Error is the failure reason when Status is failed.
	Error string `json:"error,omitempty"`
}

func newStatusResponse(res generation.StatusResult) StatusResponse {
	return StatusResponse{
		Status:   string(res.Status),
		VideoURL: res.VideoURL,
		Error:    res.ErrorDetail,
	}
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Prompt      string    `json:"prompt"`
	Duration    string    `json:"duration"`
	DurationSec int       `json:"duration_sec"`
	Orientation string    `json:"orientation"`
	VideoURL    string    `json:"video_url,omitempty"`
	ArchiveURL  string    `json:"archive_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newJobResponse(j *generation.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		Prompt:      j.Request.Prompt,
		Duration:    string(j.Request.Duration),
		DurationSec: j.Request.Duration.Seconds(),
		Orientation: string(j.Request.Orientation),
		VideoURL:    j.VideoURL,
		ArchiveURL:  j.ArchiveURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ListVideosResponse is the HTTP response for listing jobs, newest first.
type ListVideosResponse struct {
	Data []JobResponse `json:"data"`
}

// ArchiveResponse is the HTTP response after archiving a video.
type ArchiveResponse struct {
	// URL is the archived object's location.
	URL string `json:"url"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`
	// Fields maps invalid request fields to their messages.
	Fields map[string]string `json:"fields,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
