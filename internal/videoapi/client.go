package videoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
)

// Static errors for client construction and downloads.
var (
	// ErrBaseURLRequired is returned when the API base URL is not provided.
	ErrBaseURLRequired = errors.New("videoapi: base URL is required")
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("videoapi: VIDEO_API_KEY is not set")
	// ErrVideoURLRequired is returned when Download is called without a URL.
	ErrVideoURLRequired = errors.New("videoapi: video URL is required")
)

// Client is the upstream API as seen by the rest of the system.
type Client interface {
	// Generate submits a generation job and returns its upstream id.
	Generate(ctx context.Context, req generation.GenerationRequest) (jobID string, err error)

	// CheckStatus performs one status request for a job.
	CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error)

	// Download streams a finished video into w.
	Download(ctx context.Context, videoURL string, w io.Writer) error
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the bearer credential for the upstream API.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// It has no effect when WithHTTPClient is used.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
// The default is 0: every failure is reported to the caller immediately.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		if n >= 0 {
			hc.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(hc *HTTPClient) {
		hc.userAgent = ua
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		if logger != nil {
			hc.logger = logger
		}
	}
}

// NewClient creates a new upstream HTTP client.
// The API key can be set via WithAPIKey. If not provided,
// it is read from the environment variable VIDEO_API_KEY.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		userAgent:   "promptvideo-api",
		timeout:     30 * time.Second,
		maxRetries:  0,
		baseBackoff: 1 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("VIDEO_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Generate posts {prompt, duration_sec, orientation} and returns data.video_id.
// A success response without a video id is reported as an UpstreamError.
func (c *HTTPClient) Generate(ctx context.Context, req generation.GenerationRequest) (string, error) {
	bodyBytes, err := json.Marshal(req.Payload())
	if err != nil {
		return "", fmt.Errorf("videoapi: marshal request: %w", err)
	}

	var resp generateResponse
	raw, err := c.doRequestWithRetry(ctx, "generate", http.MethodPost, c.baseURL+"/videos/generate", bodyBytes, &resp)
	if err != nil {
		return "", err
	}

	if resp.Data.VideoID == "" {
		msg := "response did not include a video id"
		if resp.Error != "" {
			msg = resp.Error
		}
		return "", &generation.UpstreamError{Body: string(raw), Message: msg}
	}

	return resp.Data.VideoID, nil
}

// CheckStatus performs a single status request and normalizes the answer:
// "completed" carries the video URL, "failed" stays failed and every other
// upstream value is reported as processing.
func (c *HTTPClient) CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error) {
	if jobID == "" {
		return generation.StatusResult{}, generation.NewValidationError("job_id", "job_id is required")
	}

	endpoint := c.baseURL + "/videos/status?video_id=" + url.QueryEscape(jobID)

	var resp statusResponse
	raw, err := c.doRequestWithRetry(ctx, "check status", http.MethodGet, endpoint, nil, &resp)
	if err != nil {
		return generation.StatusResult{}, err
	}

	switch strings.ToLower(resp.Status) {
	case upstreamCompleted:
		if resp.VideoURL == "" {
			return generation.StatusResult{}, &generation.UpstreamError{
				Body:    string(raw),
				Message: "completed job has no video_url",
			}
		}
		return generation.StatusResult{Status: generation.StatusCompleted, VideoURL: resp.VideoURL}, nil
	case upstreamFailed:
		return generation.StatusResult{Status: generation.StatusFailed, ErrorDetail: resp.Error}, nil
	default:
		return generation.StatusResult{Status: generation.StatusProcessing}, nil
	}
}

// Download streams the video at videoURL into w.
func (c *HTTPClient) Download(ctx context.Context, videoURL string, w io.Writer) error {
	if videoURL == "" {
		return ErrVideoURLRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return fmt.Errorf("videoapi: create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &generation.NetworkError{Op: "download", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &generation.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    generation.MessageFromBody(body),
		}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &generation.NetworkError{Op: "download", Err: err}
	}

	return nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
// It returns the raw response body alongside any decoding into result.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, op, method, endpoint string, body []byte, result any) ([]byte, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying upstream request",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return nil, &generation.NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		raw, err := c.doRequest(ctx, op, method, endpoint, body, result)
		if err == nil {
			return raw, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, unwrapRetryable(lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, op, method, endpoint string, body []byte, result any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("videoapi: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: &generation.NetworkError{Op: op, Err: err}}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: &generation.NetworkError{Op: op, Err: err}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &generation.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Message:    generation.MessageFromBody(respBody),
		}
		// 5xx and 429 are transient
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: upErr}
		}
		return nil, upErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, &generation.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	return respBody, nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// unwrapRetryable strips the retry marker so callers see the taxonomy error.
func unwrapRetryable(err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}
