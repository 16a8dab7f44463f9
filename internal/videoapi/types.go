// Package videoapi provides an HTTP client for the upstream text-to-video
// generation API. It submits generation jobs and reports their normalized status.
package videoapi

// generateResponse is the body returned by the generation endpoint.
type generateResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// statusResponse is the body returned by the status endpoint.
type statusResponse struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Upstream status values.
const (
	upstreamCompleted = "completed"
	upstreamFailed    = "failed"
)
