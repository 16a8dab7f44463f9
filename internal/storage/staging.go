package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Stager writes staged videos into a single directory.
type Stager struct {
	dir string
}

// NewStager creates dir if needed. An empty dir means
// os.TempDir()/promptvideo.
func NewStager(dir string) (*Stager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "promptvideo")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create staging dir: %w", err)
	}
	return &Stager{dir: dir}, nil
}

// StagedFile is a video on local disk, rewound to its first byte.
type StagedFile struct {
	*os.File
}

// Close closes and removes the file.
func (f *StagedFile) Close() error {
	return errors.Join(f.File.Close(), os.Remove(f.Name()))
}

// Stage copies r into a uniquely named file and rewinds it.
// Nothing is left on disk when it fails.
func (s *Stager) Stage(r io.Reader) (*StagedFile, error) {
	f, err := os.CreateTemp(s.dir, "video-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("storage: create staged file: %w", err)
	}
	staged := &StagedFile{File: f}

	if _, err := io.Copy(f, r); err != nil {
		_ = staged.Close()
		return nil, fmt.Errorf("storage: stage video: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = staged.Close()
		return nil, fmt.Errorf("storage: rewind staged video: %w", err)
	}
	return staged, nil
}
