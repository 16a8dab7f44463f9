// Package storage archives finished videos to S3-compatible object storage.
// Downloads are staged on local disk first so uploads get a seekable body.
package storage

import (
	"context"
	"io"
)

// Storage stages and publishes archived videos.
type Storage interface {
	// Stage copies r into a new local file. Closing the file removes it.
	Stage(r io.Reader) (*StagedFile, error)

	// Upload stores data under key and returns its URL.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
