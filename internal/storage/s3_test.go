package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Config(t *testing.T, endpoint string) S3Config {
	t.Helper()
	return S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		StagingDir:      filepath.Join(t.TempDir(), "s3"),
	}
}

func TestNewS3Storage(t *testing.T) {
	storage, err := NewS3Storage(context.Background(), testS3Config(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "test-bucket", storage.bucket)
	assert.Equal(t, "us-east-1", storage.region)
	assert.Equal(t, "https://test-bucket.s3.us-east-1.amazonaws.com/videos/abc123.mp4", storage.objectURL("videos/abc123.mp4"))
}

func TestS3Storage_UploadStagedFile(t *testing.T) {
	var gotType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	storage, err := NewS3Storage(context.Background(), testS3Config(t, server.URL))
	require.NoError(t, err)

	staged, err := storage.Stage(strings.NewReader("staged-video"))
	require.NoError(t, err)
	defer func() { _ = staged.Close() }()

	_, err = storage.Upload(context.Background(), "videos/abc123.mp4", staged)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", gotType)
	assert.Contains(t, string(gotBody), "staged-video")
}

func TestS3Storage_Upload_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/test-bucket/videos/abc123.mp4", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "video-bytes"), "unexpected body: %s", string(body))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	storage, err := NewS3Storage(context.Background(), testS3Config(t, server.URL))
	require.NoError(t, err)

	url, err := storage.Upload(context.Background(), "videos/abc123.mp4", bytes.NewReader([]byte("video-bytes")))
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/test-bucket/videos/abc123.mp4", url)
}

func TestS3Storage_Upload_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer server.Close()

	storage, err := NewS3Storage(context.Background(), testS3Config(t, server.URL))
	require.NoError(t, err)

	_, err = storage.Upload(context.Background(), "videos/abc123.mp4", bytes.NewReader([]byte("video-bytes")))
	assert.Error(t, err)
}
