package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive using the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a local filesystem archive
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Save stores a file and returns its metadata
func (s *LocalArchive) Save(ctx context.Context, filename string, r io.Reader) (*FileInfo, error) {
	// UUID prefix keeps repeat uploads of the same filename apart.
	safeFilename := sanitizeFilename(filename)
	storedFilename := fmt.Sprintf("%s_%s", uuid.New().String()[:8], safeFilename)
	filePath := filepath.Join(s.basePath, storedFilename)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath) // Cleanup on error
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &FileInfo{
		Name:      filename,
		Size:      size,
		Path:      storedFilename,
		CreatedAt: time.Now(),
	}, nil
}

// Open retrieves an archived file by its storage path
func (s *LocalArchive) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full := filepath.Join(s.basePath, sanitizeFilename(path))
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open archived file: %w", err)
	}
	return f, nil
}

// Delete removes an archived file
func (s *LocalArchive) Delete(ctx context.Context, path string) error {
	full := filepath.Join(s.basePath, sanitizeFilename(path))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archived file: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
