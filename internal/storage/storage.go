// Package storage publishes rendered timelines. It defines the Storage
// interface (port) and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage publishes output files.
type Storage interface {
	// WriteFile replaces the file at path with data. Readers of path see
	// either the previous content or all of data, never a partial file.
	WriteFile(ctx context.Context, path string, data []byte) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
