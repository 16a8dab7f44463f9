package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeRelay serves the relay endpoints with a job that completes on the
// second status check.
type fakeRelay struct {
	generateCalls atomic.Int32
	statusCalls   atomic.Int32
	generateCode  int
	finalStatus   string
	generateBody  atomic.Value
}

func (f *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/videos", func(w http.ResponseWriter, r *http.Request) {
		f.generateCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.generateBody.Store(string(body))
		if f.generateCode != 0 {
			w.WriteHeader(f.generateCode)
			_, _ = w.Write([]byte(`{"error":"rate limited","code":"UPSTREAM_ERROR"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"video_id":"abc123"}}`))
	})
	mux.HandleFunc("GET /api/videos/status", func(w http.ResponseWriter, r *http.Request) {
		if f.statusCalls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(f.final()))
	})
	mux.HandleFunc("GET /api/videos/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprintf(w, "data: {\"status\":\"processing\"}\n\n")
		_, _ = fmt.Fprintf(w, "data: %s\n\n", f.final())
	})
	return mux
}

func (f *fakeRelay) final() string {
	if f.finalStatus == "failed" {
		return `{"status":"failed","error":"content policy"}`
	}
	return `{"status":"completed","video_url":"https://cdn.example.com/abc123.mp4"}`
}

func runCLI(t *testing.T, relay *fakeRelay, extra ...string) (int, string, string) {
	t.Helper()
	srv := httptest.NewServer(relay.handler())
	t.Cleanup(srv.Close)

	args := append([]string{
		"-server", srv.URL,
		"-prompt", "A calm lake at sunrise with birds flying",
		"-interval", "5ms",
	}, extra...)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Completed(t *testing.T) {
	relay := &fakeRelay{}
	code, stdout, _ := runCLI(t, relay)

	assert.Equal(t, exitCompleted, code)
	assert.Contains(t, stdout, "generating")
	assert.Contains(t, stdout, "polling")
	assert.Contains(t, stdout, "completed https://cdn.example.com/abc123.mp4")
	assert.Equal(t, int32(2), relay.statusCalls.Load())
}

func TestRun_SendsUpstreamShapedBody(t *testing.T) {
	relay := &fakeRelay{}
	code, _, _ := runCLI(t, relay, "-duration", "1 min", "-orientation", "portrait")

	assert.Equal(t, exitCompleted, code)
	body, _ := relay.generateBody.Load().(string)
	assert.JSONEq(t, `{"prompt":"A calm lake at sunrise with birds flying","duration_sec":60,"orientation":"portrait"}`, body)
}

func TestRun_Stream(t *testing.T) {
	relay := &fakeRelay{}
	code, stdout, _ := runCLI(t, relay, "-stream")

	assert.Equal(t, exitCompleted, code)
	assert.Contains(t, stdout, "completed https://cdn.example.com/abc123.mp4")
	assert.Zero(t, relay.statusCalls.Load())
}

func TestRun_Failed(t *testing.T) {
	relay := &fakeRelay{finalStatus: "failed"}
	code, stdout, _ := runCLI(t, relay)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "failed: Video generation failed. Please try again.")
}

func TestRun_SubmitError(t *testing.T) {
	relay := &fakeRelay{generateCode: http.StatusInternalServerError}
	code, stdout, _ := runCLI(t, relay)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "error: rate limited")
	assert.Zero(t, relay.statusCalls.Load())
}

func TestRun_ValidationError(t *testing.T) {
	relay := &fakeRelay{}
	code, _, stderr := runCLI(t, relay, "-prompt", "short", "-duration", "2 min")

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "prompt: prompt must be at least 10 characters")
	assert.Contains(t, stderr, "duration: duration must be one of: 30 sec, 1 min")
	assert.Zero(t, relay.generateCalls.Load())
}

func TestRun_BadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-unknown"}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
}
