// Package bootstrap provides dependency initialization for the relay server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/promptvideo-api/internal/config"
	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/storage"
	"github.com/maauso/promptvideo-api/internal/video"
	"github.com/maauso/promptvideo-api/internal/videoapi"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	VideoService *video.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize upstream client
	client, err := videoapi.NewClient(cfg.VideoAPIBaseURL,
		videoapi.WithAPIKey(cfg.VideoAPIKey),
		videoapi.WithTimeout(cfg.UpstreamTimeout),
		videoapi.WithMaxRetries(cfg.UpstreamMaxRetries),
		videoapi.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create video API client: %w", err)
	}

	// Initialize job repository
	repo := generation.NewMemoryRepository(cfg.JobCacheSize)

	opts := []video.Option{video.WithPollInterval(cfg.PollInterval)}

	// Archiving is only available with S3
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, video.WithStorage(store))
	}

	return &Dependencies{
		VideoService: video.NewService(client, repo, logger, opts...),
	}, nil
}

// initStorage creates the S3 archive backend, or returns nil when S3 is not
// configured.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if !cfg.S3Enabled() {
		logger.Info("S3 archiving disabled")
		return nil, nil
	}

	s3Cfg := storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		StagingDir:      cfg.TempDir,
	}
	s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.String("temp_dir", cfg.TempDir),
	)
	return s3Store, nil
}
