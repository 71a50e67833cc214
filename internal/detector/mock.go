package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ecowise-backend/internal/domain"
)

// mockKeyword maps filename triggers to the item the mock "recognizes".
// Keywords are evaluated in declaration order so output is reproducible.
type mockKeyword struct {
	name     string
	category string
	triggers []string
}

var mockKeywords = []mockKeyword{
	{name: "plastic_bottle", category: "plastic", triggers: []string{"bottle", "plastic"}},
	{name: "aluminum_can", category: "metal", triggers: []string{"can", "metal"}},
	{name: "paper", category: "paper", triggers: []string{"paper"}},
	{name: "glass", category: "glass", triggers: []string{"glass"}},
	{name: "organic_waste", category: "organic", triggers: []string{"organic"}},
}

// MockDetector is a rules-based detector for development and testing. It
// inspects only the filename, so its output is stable for a given input,
// and its confidence jitter comes from an explicitly injected random
// source so tests can seed it.
type MockDetector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockDetector creates a mock detector using the given random source.
func NewMockDetector(rng *rand.Rand) *MockDetector {
	return &MockDetector{rng: rng}
}

// mockRawDetection mirrors the object-list payload shape of the real
// backend so the mock exercises the same normalization path.
type mockRawDetection struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// Detect returns a raw object-list payload derived from filename keywords.
// Filenames matching no keyword fall back to a single "paper" detection so
// the development flow always produces a reward.
func (d *MockDetector) Detect(ctx context.Context, imagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	filename := strings.ToLower(filepath.Base(imagePath))

	var detected []mockRawDetection
	for _, kw := range mockKeywords {
		for _, trigger := range kw.triggers {
			if strings.Contains(filename, trigger) {
				detected = append(detected, d.rawDetection(kw))
				break
			}
		}
	}

	if len(detected) == 0 {
		detected = append(detected, d.rawDetection(mockKeywords[2]))
	}

	return json.Marshal(detected)
}

func (d *MockDetector) rawDetection(kw mockKeyword) mockRawDetection {
	d.mu.Lock()
	jitter := d.rng.Float64()
	x := d.rng.Float64()
	y := d.rng.Float64()
	d.mu.Unlock()

	return mockRawDetection{
		Name:       kw.name,
		Category:   kw.category,
		Confidence: 0.75 + 0.2*jitter,
		BBox:       []float64{x * 100, y * 100, x*100 + 120, y*100 + 160},
	}
}

// Close is a no-op for the mock detector.
func (d *MockDetector) Close() error {
	return nil
}
