// Package storage persists uploaded images to local disk under
// collision-free names.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
	"github.com/google/uuid"
)

// allowedExtensions are the upload types the pipeline accepts.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Store writes uploads to a local directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates the upload directory if needed and returns a store.
func NewStore(cfg *config.UploadsConfig, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{
		dir:      cfg.Dir,
		maxBytes: int64(cfg.MaxSizeMB) << 20,
		logger:   logger,
	}, nil
}

// Save validates the upload's extension and writes it to disk under a
// uuid-prefixed name, returning the stored path. Unsupported types are
// rejected before any bytes are written.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	base := sanitizeFilename(filename)
	if base == "" {
		return "", fmt.Errorf("%w: empty filename", domain.ErrInvalidInput)
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, ext)
	}

	storedName := fmt.Sprintf("%s_%s", uuid.New().String(), base)
	storedPath := filepath.Join(s.dir, storedName)

	f, err := os.Create(storedPath)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	limited := io.LimitReader(r, s.maxBytes+1)
	written, err := io.Copy(f, limited)
	if err != nil {
		os.Remove(storedPath)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(storedPath)
		return "", fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidInput, s.maxBytes)
	}

	s.logger.Debug("stored upload", "path", storedPath, "bytes", written)
	return storedPath, nil
}

// Remove deletes a stored upload.
func (s *Store) Remove(storedPath string) error {
	return os.Remove(storedPath)
}

// sanitizeFilename strips any path components and characters that are not
// safe in a stored name.
func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == ".." {
		return ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
