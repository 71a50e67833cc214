// Package detector defines the pluggable image-detection backend and its
// two implementations: an HTTP client for an external inference sidecar and
// a deterministic mock for development and tests.
package detector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
)

// Detector runs object detection on a stored image and returns the raw,
// backend-specific payload. Implementations are constructed explicitly and
// shut down via Close; there is no lazily initialized global handle.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]byte, error)
	Close() error
}

// HTTPDetector posts images to an external inference service and returns
// its response body verbatim for the normalizer to interpret.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPDetector creates a detector backed by the inference sidecar.
func NewHTTPDetector(cfg *config.DetectorConfig, logger *slog.Logger) *HTTPDetector {
	return &HTTPDetector{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// Detect uploads the image as multipart form data and returns the raw
// response payload. All transport and remote failures are reported as
// ErrBackendUnavailable so the pipeline can degrade to an empty detection
// list instead of failing the request.
func (d *HTTPDetector) Detect(ctx context.Context, imagePath string) ([]byte, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening image: %w", domain.ErrInvalidInput, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", domain.ErrBackendUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: inference service returned status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", domain.ErrBackendUnavailable, err)
	}
	return body, nil
}

// Close shuts down the detector's idle connections.
func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
