package storage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(&config.UploadsConfig{
		Dir:       t.TempDir(),
		MaxSizeMB: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestSaveStoresUnderUniqueName(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Save("photo.jpg", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	second, err := s.Save("photo.jpg", strings.NewReader("image-bytes"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(first, "_photo.jpg"))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestSaveRejectsUnsupportedExtension(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"malware.exe", "doc.pdf", "noext", "archive.tar.gz"} {
		_, err := s.Save(name, strings.NewReader("x"))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrUnsupportedFileType), name)
	}
}

func TestSaveAcceptsAllowedExtensions(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"a.jpg", "b.jpeg", "c.png", "d.webp", "e.gif", "F.JPG"} {
		_, err := s.Save(name, strings.NewReader("x"))
		assert.NoError(t, err, name)
	}
}

func TestSaveStripsPathComponents(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("../../etc/passwd.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_passwd.png"))
	assert.Equal(t, s.dir, filepath.Dir(path))
}

func TestSaveRejectsEmptyFilename(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save("", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	s := newTestStore(t)

	big := strings.NewReader(strings.Repeat("a", 1<<20+1))
	_, err := s.Save("big.jpg", big)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	// Nothing is left behind on rejection.
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("gone.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(path))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
