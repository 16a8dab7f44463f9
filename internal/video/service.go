// Package video provides the server-side use cases: starting a generation,
// relaying status checks (one-shot or streamed) and archiving finished videos.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/poller"
	"github.com/maauso/promptvideo-api/internal/storage"
)

var (
	// ErrArchiveNotConfigured is returned by Archive when no storage is set.
	ErrArchiveNotConfigured = errors.New("video: archiving is not configured")
	// ErrNotCompleted is returned by Archive for jobs without a finished video.
	ErrNotCompleted = errors.New("video: job is not completed")
)

// Upstream is the subset of the upstream client the service needs.
type Upstream interface {
	Generate(ctx context.Context, req generation.GenerationRequest) (string, error)
	CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error)
	Download(ctx context.Context, videoURL string, w io.Writer) error
}

// Service coordinates the upstream client, the job repository and storage.
type Service struct {
	upstream Upstream
	repo     generation.Repository
	store    storage.Storage
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStorage enables Archive.
func WithStorage(store storage.Storage) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPollInterval sets the cadence of Watch.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewService creates a new Service.
func NewService(upstream Upstream, repo generation.Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		upstream: upstream,
		repo:     repo,
		interval: poller.DefaultInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArchiveEnabled reports whether Archive can be used.
func (s *Service) ArchiveEnabled() bool {
	return s.store != nil
}

// Generate validates req, starts the upstream job and records it.
func (s *Service) Generate(ctx context.Context, req generation.GenerationRequest) (*generation.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jobID, err := s.upstream.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	job := generation.NewJob(jobID, req)
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	s.logger.Info("video generation started",
		slog.String("job_id", jobID),
		slog.Int("duration_sec", req.Duration.Seconds()),
		slog.String("orientation", string(req.Orientation)),
	)

	return job, nil
}

// Status performs one upstream status check and records the result on the
// job, if this server created it.
func (s *Service) Status(ctx context.Context, jobID string) (generation.StatusResult, error) {
	res, err := s.upstream.CheckStatus(ctx, jobID)
	if err != nil {
		return generation.StatusResult{}, err
	}
	s.record(ctx, jobID, func(j *generation.Job) error { return j.Apply(res) })
	return res, nil
}

// Watch polls the job on the server side and calls emit with every result,
// in order. It returns nil after emitting a terminal status, the check error
// if a status check fails, emit's error if emit fails, or ctx's error when
// the caller goes away first.
func (s *Service) Watch(ctx context.Context, jobID string, emit func(generation.StatusResult) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var checkErr, emitErr error
	onUpdate := func(ev poller.Event) {
		if err := emit(ev.Result); err != nil {
			emitErr = err
			cancel()
		}
	}
	onTerminal := func(ev poller.Event) {
		if ev.Kind == poller.EventError {
			checkErr = ev.Err
			return
		}
		if err := emit(ev.Result); err != nil {
			emitErr = err
		}
	}

	p := poller.New(poller.StatusCheckerFunc(s.Status), poller.WithInterval(s.interval), poller.WithLogger(s.logger))
	if err := p.Start(ctx, jobID, onUpdate, onTerminal); err != nil {
		return err
	}
	<-p.Done()

	switch {
	case checkErr != nil:
		return checkErr
	case emitErr != nil:
		return emitErr
	default:
		// ctx is the caller's context here; our own cancel only fires on emitErr.
		return ctx.Err()
	}
}

// GetJob returns the last known state of a job created by this server.
func (s *Service) GetJob(ctx context.Context, jobID string) (*generation.Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns the jobs created by this server, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]*generation.Job, error) {
	return s.repo.List(ctx)
}

// Archive copies a completed job's video into object storage and returns
// the stored object's URL.
func (s *Service) Archive(ctx context.Context, jobID string) (string, error) {
	if s.store == nil {
		return "", ErrArchiveNotConfigured
	}

	res, err := s.Status(ctx, jobID)
	if err != nil {
		return "", err
	}
	if res.Status != generation.StatusCompleted {
		return "", ErrNotCompleted
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.upstream.Download(ctx, res.VideoURL, pw))
	}()

	staged, err := s.store.Stage(pr)
	_ = pr.Close()
	if err != nil {
		return "", fmt.Errorf("stage video: %w", err)
	}
	defer func() {
		if err := staged.Close(); err != nil {
			s.logger.Warn("failed to remove staged video",
				slog.String("path", staged.Name()),
				slog.String("error", err.Error()),
			)
		}
	}()

	archiveURL, err := s.store.Upload(ctx, "videos/"+url.PathEscape(jobID)+".mp4", staged)
	if err != nil {
		return "", err
	}

	s.record(ctx, jobID, func(j *generation.Job) error {
		j.ArchiveURL = archiveURL
		return nil
	})

	s.logger.Info("video archived",
		slog.String("job_id", jobID),
		slog.String("url", archiveURL),
	)
	return archiveURL, nil
}

// record updates a known job. Unknown ids are ignored: the status endpoints
// relay any id but only jobs started here are tracked.
func (s *Service) record(ctx context.Context, jobID string, update func(*generation.Job) error) {
	err := s.repo.Update(ctx, jobID, update)
	switch {
	case err == nil, errors.Is(err, generation.ErrJobNotFound):
	case errors.Is(err, generation.ErrInvalidTransition):
		s.logger.Debug("job update rejected",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Warn("failed to update job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
