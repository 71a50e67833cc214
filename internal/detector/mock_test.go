package detector

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecowise-backend/internal/domain"
)

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	return path
}

func decode(t *testing.T, raw []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMockDetectorKeywordMatching(t *testing.T) {
	d := NewMockDetector(rand.New(rand.NewSource(1)))

	raw, err := d.Detect(context.Background(), touch(t, "plastic_bottle_photo.jpg"))
	require.NoError(t, err)

	out := decode(t, raw)
	require.Len(t, out, 1)
	assert.Equal(t, "plastic_bottle", out[0]["name"])
	assert.Equal(t, "plastic", out[0]["category"])

	conf, ok := out[0]["confidence"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, conf, 0.75)
	assert.LessOrEqual(t, conf, 0.95)
}

func TestMockDetectorMultipleKeywords(t *testing.T) {
	d := NewMockDetector(rand.New(rand.NewSource(1)))

	raw, err := d.Detect(context.Background(), touch(t, "glass_and_can.png"))
	require.NoError(t, err)

	out := decode(t, raw)
	require.Len(t, out, 2)
	// Keywords are checked in a fixed order.
	assert.Equal(t, "aluminum_can", out[0]["name"])
	assert.Equal(t, "glass", out[1]["name"])
}

func TestMockDetectorFallback(t *testing.T) {
	d := NewMockDetector(rand.New(rand.NewSource(1)))

	raw, err := d.Detect(context.Background(), touch(t, "mystery.jpg"))
	require.NoError(t, err)

	out := decode(t, raw)
	require.Len(t, out, 1)
	assert.Equal(t, "paper", out[0]["name"])
}

func TestMockDetectorDeterministicForSeed(t *testing.T) {
	a := NewMockDetector(rand.New(rand.NewSource(42)))
	b := NewMockDetector(rand.New(rand.NewSource(42)))

	path := touch(t, "bottle.jpg")

	rawA, err := a.Detect(context.Background(), path)
	require.NoError(t, err)
	rawB, err := b.Detect(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, rawA, rawB)
}

func TestMockDetectorMissingFile(t *testing.T) {
	d := NewMockDetector(rand.New(rand.NewSource(1)))

	_, err := d.Detect(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMockDetectorCancelledContext(t *testing.T) {
	d := NewMockDetector(rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, touch(t, "bottle.jpg"))
	assert.Error(t, err)
}
