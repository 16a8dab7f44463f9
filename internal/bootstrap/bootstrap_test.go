package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/promptvideo-api/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		VideoAPIKey:     "test-key",
		VideoAPIBaseURL: "http://localhost:9999/v1",
		UpstreamTimeout: time.Second,
		PollInterval:    time.Second,
		JobCacheSize:    10,
		TempDir:         t.TempDir(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_WithoutS3(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)
	require.NotNil(t, deps.VideoService)
	assert.False(t, deps.VideoService.ArchiveEnabled())
}

func TestNewDependencies_WithS3(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3Bucket = "videos"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.True(t, deps.VideoService.ArchiveEnabled())
}

func TestNewDependencies_MissingBaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.VideoAPIBaseURL = ""

	_, err := NewDependencies(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}
