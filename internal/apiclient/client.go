// Package apiclient talks to the promptvideo relay server. It implements the
// submission and status-check contracts used by the flow package, over either
// one-shot status requests or the server's event stream.
package apiclient

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
	"strings"
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
)

// ErrServerURLRequired is returned when New is called without a server URL.
var ErrServerURLRequired = errors.New("apiclient: server URL is required")

const defaultTimeout = 30 * time.Second

// Client is an HTTP client for the relay's /api/videos endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its timeout also bounds Stream, so
// streaming callers should leave it at zero.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// New creates a Client for the relay at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrServerURLRequired
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type generateResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

type statusResponse struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

// Generate posts the request to the relay and returns the upstream job id.
func (c *Client) Generate(ctx context.Context, req generation.GenerationRequest) (string, error) {
	body, err := json.Marshal(req.Payload())
	if err != nil {
		return "", fmt.Errorf("apiclient: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var resp generateResponse
	raw, err := c.do(ctx, "generate", http.MethodPost, "/api/videos", body, &resp)
	if err != nil {
		return "", err
	}
	if resp.Data.VideoID == "" {
		return "", &generation.UpstreamError{Body: string(raw), Message: "response did not include a video id"}
	}
	return resp.Data.VideoID, nil
}

// CheckStatus performs one status request through the relay.
func (c *Client) CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error) {
	if jobID == "" {
		return generation.StatusResult{}, generation.NewValidationError("job_id", "job_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var resp statusResponse
	raw, err := c.do(ctx, "check status", http.MethodGet, "/api/videos/status?id="+url.QueryEscape(jobID), nil, &resp)
	if err != nil {
		return generation.StatusResult{}, err
	}
	return toStatusResult(resp, raw)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, result any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &generation.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &generation.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return nil, &generation.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("relay request",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
	)
	return respBody, nil
}

// responseError turns a non-2xx relay response back into the error taxonomy.
func responseError(status int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Code == "VALIDATION_ERROR" && len(e.Fields) > 0 {
		return &generation.ValidationError{Fields: e.Fields}
	}
	return &generation.UpstreamError{
		StatusCode: status,
		Body:       string(body),
		Message:    generation.MessageFromBody(body),
	}
}

func toStatusResult(resp statusResponse, raw []byte) (generation.StatusResult, error) {
	switch generation.Status(resp.Status) {
	case generation.StatusCompleted:
		if resp.VideoURL == "" {
			return generation.StatusResult{}, &generation.UpstreamError{
				Body:    string(raw),
				Message: "completed job has no video_url",
			}
		}
		return generation.StatusResult{Status: generation.StatusCompleted, VideoURL: resp.VideoURL}, nil
	case generation.StatusFailed:
		return generation.StatusResult{Status: generation.StatusFailed, ErrorDetail: resp.Error}, nil
	case generation.StatusPending:
		return generation.StatusResult{Status: generation.StatusPending}, nil
	default:
		return generation.StatusResult{Status: generation.StatusProcessing}, nil
	}
}
