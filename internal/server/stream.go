package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
)

// StreamStatus handles GET /api/videos/stream?id= requests.
// It polls on the server and pushes each status as a server-sent event,
// closing the stream after a terminal status. A failed check is sent as an
// "error" event. Client disconnect cancels the polling.
func (h *Handlers) StreamStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "STREAMING_UNSUPPORTED")
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := h.service.Watch(r.Context(), jobID, func(res generation.StatusResult) error {
		return writeEvent(w, flusher, "", newStatusResponse(res))
	})
	if err == nil || r.Context().Err() != nil {
		return
	}

	h.logger.Warn("status stream ended with error",
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
		slog.String("request_id", RequestIDFromContext(r.Context())),
	)
	_ = writeEvent(w, flusher, "error", ErrorResponse{Error: streamErrorMessage(err)})
}

// writeEvent writes one SSE event. An empty event name sends a default
// message event.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func streamErrorMessage(err error) string {
	var upErr *generation.UpstreamError
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	var netErr *generation.NetworkError
	if errors.As(err, &netErr) {
		return "upstream unreachable"
	}
	return "status check failed"
}
