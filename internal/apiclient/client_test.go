package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/promptvideo-api/internal/flow"
	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/server"
	"github.com/maauso/promptvideo-api/internal/video"
)

func validRequest() generation.GenerationRequest {
	return generation.GenerationRequest{
		Prompt:      "A cat playing piano in a jazz bar",
		Duration:    generation.Duration1Min,
		Orientation: generation.OrientationPortrait,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrServerURLRequired)

	c, err := New("http://localhost:8080/", WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestClient_Generate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/videos", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"prompt":"A cat playing piano in a jazz bar","duration_sec":60,"orientation":"portrait"}`, string(body))

		_, _ = w.Write([]byte(`{"data":{"video_id":"abc123"}}`))
	})

	id, err := c.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

// recordingUpstream captures what the relay forwards.
type recordingUpstream struct {
	got generation.GenerationRequest
}

func (u *recordingUpstream) Generate(_ context.Context, req generation.GenerationRequest) (string, error) {
	u.got = req
	return "abc123", nil
}

func (u *recordingUpstream) CheckStatus(context.Context, string) (generation.StatusResult, error) {
	return generation.StatusResult{Status: generation.StatusProcessing}, nil
}

func (u *recordingUpstream) Download(context.Context, string, io.Writer) error {
	return nil
}

func TestClient_Generate_AgainstRelay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	up := &recordingUpstream{}
	svc := video.NewService(up, generation.NewMemoryRepository(0), logger)
	srv := httptest.NewServer(server.NewRouter(server.NewHandlers(svc, logger), logger, server.DefaultConfig()))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	id, err := c.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, validRequest(), up.got)
}

func TestClient_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "validation error",
			status: http.StatusBadRequest,
			body:   `{"error":"invalid request","code":"VALIDATION_ERROR","fields":{"prompt":"prompt must be at least 10 characters"}}`,
			check: func(t *testing.T, err error) {
				var vErr *generation.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "prompt must be at least 10 characters", vErr.Fields["prompt"])
			},
		},
		{
			name:   "relayed upstream error",
			status: http.StatusTooManyRequests,
			body:   `{"error":"Rate limit exceeded","code":"UPSTREAM_ERROR"}`,
			check: func(t *testing.T, err error) {
				var upErr *generation.UpstreamError
				require.ErrorAs(t, err, &upErr)
				assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
				assert.Equal(t, "Rate limit exceeded", upErr.Message)
			},
		},
		{
			name:   "missing video id",
			status: http.StatusOK,
			body:   `{"data":{}}`,
			check: func(t *testing.T, err error) {
				var upErr *generation.UpstreamError
				require.ErrorAs(t, err, &upErr)
				assert.Equal(t, "response did not include a video id", upErr.Message)
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				var netErr *generation.NetworkError
				assert.ErrorAs(t, err, &netErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Generate(context.Background(), validRequest())
			tt.check(t, err)
		})
	}
}

func TestClient_Generate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), validRequest())

	var netErr *generation.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "generate", netErr.Op)
}

func TestClient_CheckStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want generation.StatusResult
	}{
		{"pending", `{"status":"pending"}`, generation.StatusResult{Status: generation.StatusPending}},
		{"processing", `{"status":"processing"}`, generation.StatusResult{Status: generation.StatusProcessing}},
		{"completed", `{"status":"completed","video_url":"https://cdn.example.com/v.mp4"}`,
			generation.StatusResult{Status: generation.StatusCompleted, VideoURL: "https://cdn.example.com/v.mp4"}},
		{"failed", `{"status":"failed","error":"content policy"}`,
			generation.StatusResult{Status: generation.StatusFailed, ErrorDetail: "content policy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/videos/status", r.URL.Path)
				assert.Equal(t, "abc 123", r.URL.Query().Get("id"))
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.CheckStatus(context.Background(), "abc 123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_CheckStatus_EmptyID(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.CheckStatus(context.Background(), "")

	var vErr *generation.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestClient_CheckStatus_CompletedWithoutURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	})

	_, err := c.CheckStatus(context.Background(), "abc123")

	var upErr *generation.UpstreamError
	assert.ErrorAs(t, err, &upErr)
}

func writeSSE(t *testing.T, w http.ResponseWriter, events ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	flusher.Flush()
	for _, ev := range events {
		_, _ = fmt.Fprint(w, ev)
		flusher.Flush()
	}
}

func TestClient_Stream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/videos/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		writeSSE(t, w,
			"data: {\"status\":\"processing\"}\n\n",
			": keep-alive\n\n",
			"data: {\"status\":\"completed\",\"video_url\":\"https://cdn.example.com/v.mp4\"}\n\n",
			"data: {\"status\":\"processing\"}\n\n",
		)
	})

	var got []generation.StatusResult
	err := c.Stream(context.Background(), "abc123", func(res generation.StatusResult) error {
		got = append(got, res)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []generation.StatusResult{
		{Status: generation.StatusProcessing},
		{Status: generation.StatusCompleted, VideoURL: "https://cdn.example.com/v.mp4"},
	}, got)
}

func TestClient_Stream_MultiLineData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			"data: {\"status\":\"processing\"\ndata: }\n\n",
			"event: error\ndata: upstream said:\ndata:  rate limited\n\n",
		)
	})

	var got []generation.StatusResult
	err := c.Stream(context.Background(), "abc123", func(res generation.StatusResult) error {
		got = append(got, res)
		return nil
	})

	assert.Equal(t, []generation.StatusResult{{Status: generation.StatusProcessing}}, got)
	var upErr *generation.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "upstream said:\n rate limited", upErr.Body)
}

func TestClient_Stream_ErrorEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "event: error\ndata: {\"error\":\"upstream unreachable\"}\n\n")
	})

	err := c.Stream(context.Background(), "abc123", func(generation.StatusResult) error { return nil })

	var upErr *generation.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "upstream unreachable", upErr.Message)
}

func TestClient_Stream_EndsEarly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "data: {\"status\":\"processing\"}\n\n")
	})

	err := c.Stream(context.Background(), "abc123", func(generation.StatusResult) error { return nil })

	var netErr *generation.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestClient_Stream_CallbackError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "data: {\"status\":\"processing\"}\n\n", "data: {\"status\":\"processing\"}\n\n")
	})

	stop := errors.New("stop")
	calls := 0
	err := c.Stream(context.Background(), "abc123", func(generation.StatusResult) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestClient_Stream_BadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid job id","code":"VALIDATION_ERROR","fields":{"id":"id is required"}}`))
	})

	err := c.Stream(context.Background(), "abc123", func(generation.StatusResult) error { return nil })

	var vErr *generation.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestStreamChecker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			"data: {\"status\":\"pending\"}\n\n",
			"data: {\"status\":\"failed\",\"error\":\"content policy\"}\n\n",
		)
	})
	checker := NewStreamChecker(c)
	defer checker.Close()
	ctx := context.Background()

	res, err := checker.CheckStatus(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, generation.StatusPending, res.Status)

	res, err = checker.CheckStatus(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, generation.StatusResult{Status: generation.StatusFailed, ErrorDetail: "content policy"}, res)
}

func TestStreamChecker_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	checker := NewStreamChecker(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := checker.CheckStatus(ctx, "abc123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlow_OverStreamChecker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/videos", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"video_id":"abc123"}}`))
	})
	mux.HandleFunc("GET /api/videos/stream", func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			"data: {\"status\":\"processing\"}\n\n",
			"data: {\"status\":\"completed\",\"video_url\":\"https://cdn.example.com/v.mp4\"}\n\n",
		)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	checker := NewStreamChecker(c)
	defer checker.Close()

	f := flow.New(c, checker, flow.WithPollInterval(5*time.Millisecond))
	defer f.Close()

	require.NoError(t, f.Submit(context.Background(), validRequest()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, generation.StateCompleted, state.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", state.VideoURL)
}
