package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStager_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "staging")

	_, err := NewStager(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStager_DefaultDir(t *testing.T) {
	s, err := NewStager("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "promptvideo"), s.dir)
}

func TestStager_Stage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStager(dir)
	require.NoError(t, err)

	staged, err := s.Stage(strings.NewReader("video-bytes"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(staged.Name()))
	assert.Equal(t, ".mp4", filepath.Ext(staged.Name()))

	content, err := io.ReadAll(staged)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(content))

	require.NoError(t, staged.Close())
	_, err = os.Stat(staged.Name())
	assert.True(t, os.IsNotExist(err), "staged file should be removed on close")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStager_Stage_ReaderError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStager(dir)
	require.NoError(t, err)

	_, err = s.Stage(failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
