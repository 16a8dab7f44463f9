package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/video"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *video.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *video.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Schema handles GET /api/videos/schema requests.
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, generation.Schema())
}

// maxRequestBody caps POST bodies. A prompt is at most 500 characters.
const maxRequestBody = 64 << 10

// GenerateVideo handles POST /api/videos requests.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req GenerateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	genReq, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, "generate video", err)
		return
	}

	job, err := h.service.Generate(r.Context(), genReq)
	if err != nil {
		h.writeServiceError(w, r, "generate video", err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateVideoResponse{
		Data: GenerateVideoData{VideoID: job.ID},
	})
}

// VideoStatus handles GET /api/videos/status?id= requests.
func (h *Handlers) VideoStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}

	res, err := h.service.Status(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, r, "check status", err)
		return
	}

	writeJSON(w, http.StatusOK, newStatusResponse(res))
}

// GetVideo handles GET /api/videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r.PathValue("id"))
	if !ok {
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, r, "get job", err)
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(job))
}

// ListVideos handles GET /api/videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list videos", err)
		return
	}

	resp := ListVideosResponse{Data: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Data = append(resp.Data, newJobResponse(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ArchiveVideo handles POST /api/videos/{id}/archive requests.
func (h *Handlers) ArchiveVideo(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r.PathValue("id"))
	if !ok {
		return
	}

	url, err := h.service.Archive(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, r, "archive video", err)
		return
	}

	writeJSON(w, http.StatusOK, ArchiveResponse{URL: url})
}

// jobID validates a raw id and writes a 400 response when it is unusable.
func (h *Handlers) jobID(w http.ResponseWriter, raw string) (string, bool) {
	param := JobIDParam{ID: raw}
	if err := h.validator.Struct(param); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid job id",
			Code:   "VALIDATION_ERROR",
			Fields: map[string]string{"id": "id is required and at most 256 characters"},
		})
		return "", false
	}
	return param.ID, true
}

// writeServiceError maps the error taxonomy onto HTTP responses.
// Upstream errors keep the upstream status code and message.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		vErr   *generation.ValidationError
		upErr  *generation.UpstreamError
		netErr *generation.NetworkError
	)

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid request",
			Code:   "VALIDATION_ERROR",
			Fields: vErr.Fields,
		})
	case errors.As(err, &upErr):
		h.logger.Warn("upstream rejected request",
			slog.String("op", op),
			slog.Int("upstream_status", upErr.StatusCode),
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		status := upErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		msg := upErr.Message
		if msg == "" {
			msg = "upstream request failed"
		}
		writeError(w, status, msg, "UPSTREAM_ERROR")
	case errors.As(err, &netErr):
		h.logger.Error("upstream unreachable",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusBadGateway, "upstream unreachable", "NETWORK_ERROR")
	case errors.Is(err, generation.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, video.ErrArchiveNotConfigured):
		writeError(w, http.StatusNotImplemented, "archiving is not configured", "ARCHIVE_NOT_CONFIGURED")
	case errors.Is(err, video.ErrNotCompleted):
		writeError(w, http.StatusConflict, "video is not completed", "NOT_COMPLETED")
	default:
		h.logger.Error("request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
