// Package storage archives original statement files so past imports can be
// re-inspected or re-run after the fact.
package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo contains metadata about an archived file
type FileInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Path      string    `json:"path"` // Internal storage path
	CreatedAt time.Time `json:"created_at"`
}

// Archive defines the interface for statement file storage
type Archive interface {
	// Save stores a file and returns its metadata
	Save(ctx context.Context, filename string, r io.Reader) (*FileInfo, error)

	// Open retrieves an archived file by its storage path
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an archived file
	Delete(ctx context.Context, path string) error
}

// Config configures the archive backend
type Config struct {
	LocalPath string
}

// New creates an archive from the configuration
func New(cfg *Config) (Archive, error) {
	path := cfg.LocalPath
	if path == "" {
		path = "./archive"
	}
	return NewLocalArchive(path)
}
