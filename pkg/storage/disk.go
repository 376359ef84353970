// Package storage is a small filesystem abstraction with a local driver and
// an S3-compatible driver (AWS S3, MinIO, R2, Spaces). Order exports are
// archived through it.
//
//	m, _ := storage.Connect(ctx)
//	_ = m.Default().Put(ctx, "exports/2026/03/o1.xlsx", data)
//	url := m.Default().URL("exports/2026/03/o1.xlsx")
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the path does not exist.
var ErrNotFound = errors.New("storage: file not found")

// Disk is implemented by every driver.
type Disk interface {
	// Put writes content to path, creating parents as needed.
	Put(ctx context.Context, path string, content []byte) error
	// Get returns the content at path or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes path; a missing file is not an error.
	Delete(ctx context.Context, path string) error
	// Files lists every file under directory, recursively.
	Files(ctx context.Context, directory string) ([]string, error)
	// URL returns the public URL for path.
	URL(path string) string
}
