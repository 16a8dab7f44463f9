package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/poller"
)

// Stream follows the relay's event stream for jobID and calls fn with every
// status, in order. It returns nil once a terminal status was delivered, fn's
// error if fn fails, or the error the relay reported. A stream that ends
// before a terminal status is a NetworkError.
func (c *Client) Stream(ctx context.Context, jobID string, fn func(generation.StatusResult) error) error {
	if jobID == "" {
		return generation.NewValidationError("job_id", "job_id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/videos/stream?id="+url.QueryEscape(jobID), nil)
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &generation.NetworkError{Op: "stream status", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return responseError(resp.StatusCode, body)
	}

	var (
		event string
		data  []string
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) == 0 {
				event = ""
				continue
			}
			res, err := decodeEvent(event, strings.Join(data, "\n"))
			if err != nil {
				return err
			}
			if err := fn(res); err != nil {
				return err
			}
			if res.Status.IsTerminal() {
				return nil
			}
			event, data = "", nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			// One data field per line; a single leading space is not part of the value.
			value := strings.TrimPrefix(line, "data:")
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return &generation.NetworkError{Op: "stream status", Err: err}
	}
	return &generation.NetworkError{Op: "stream status", Err: io.ErrUnexpectedEOF}
}

func decodeEvent(event, data string) (generation.StatusResult, error) {
	if event == "error" {
		return generation.StatusResult{}, &generation.UpstreamError{
			Body:    data,
			Message: generation.MessageFromBody([]byte(data)),
		}
	}

	var resp statusResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return generation.StatusResult{}, &generation.NetworkError{Op: "stream status", Err: fmt.Errorf("decode event: %w", err)}
	}
	return toStatusResult(resp, []byte(data))
}

// Compile-time check that StreamChecker implements poller.StatusChecker.
var _ poller.StatusChecker = (*StreamChecker)(nil)

// StreamChecker serves status checks from the relay's event stream so a
// poller can run over the push variant. The first check for a job opens the
// stream under that check's context; every check returns the next pushed
// status.
type StreamChecker struct {
	client *Client

	mu      sync.Mutex
	jobID   string
	updates <-chan streamUpdate
	ctx     context.Context
	cancel  context.CancelFunc
}

type streamUpdate struct {
	res generation.StatusResult
	err error
}

// NewStreamChecker creates a StreamChecker backed by client.
func NewStreamChecker(client *Client) *StreamChecker {
	return &StreamChecker{client: client}
}

// CheckStatus waits for the next status the relay pushes for jobID.
func (s *StreamChecker) CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error) {
	if jobID == "" {
		return generation.StatusResult{}, generation.NewValidationError("job_id", "job_id is required")
	}

	updates := s.subscribe(ctx, jobID)
	select {
	case u, ok := <-updates:
		if !ok {
			if err := ctx.Err(); err != nil {
				return generation.StatusResult{}, err
			}
			return generation.StatusResult{}, &generation.NetworkError{Op: "stream status", Err: io.ErrUnexpectedEOF}
		}
		return u.res, u.err
	case <-ctx.Done():
		return generation.StatusResult{}, ctx.Err()
	}
}

// Close ends the open stream, if any.
func (s *StreamChecker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *StreamChecker) subscribe(ctx context.Context, jobID string) <-chan streamUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobID == jobID && s.ctx != nil && s.ctx.Err() == nil {
		return s.updates
	}
	if s.cancel != nil {
		s.cancel()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan streamUpdate, 8)
	s.jobID, s.updates, s.ctx, s.cancel = jobID, ch, streamCtx, cancel

	go s.pump(streamCtx, jobID, ch)
	return ch
}

func (s *StreamChecker) pump(ctx context.Context, jobID string, ch chan<- streamUpdate) {
	defer close(ch)

	send := func(u streamUpdate) error {
		select {
		case ch <- u:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := s.client.Stream(ctx, jobID, func(res generation.StatusResult) error {
		return send(streamUpdate{res: res})
	})
	if err != nil && ctx.Err() == nil {
		_ = send(streamUpdate{err: err})
	}
}
