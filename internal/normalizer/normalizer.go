// Package normalizer converts raw, backend-specific detection output into
// canonical detections. Normalize is a total function: no input, however
// malformed, makes it fail upward.
package normalizer

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ecowise-backend/internal/domain"
)

// Normalizer parses raw detector payloads into canonical detections.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a new Normalizer
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize parses raw backend output into an ordered detection list. Two
// raw shapes are supported: a list of per-detection objects, and a
// parallel-array encoding used by older backend versions. Anything else
// yields an empty list and a diagnostic log entry.
func (n *Normalizer) Normalize(raw []byte) []domain.Detection {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.Detection{}
	}

	if detections, ok := n.parseObjectList(raw); ok {
		return detections
	}
	if detections, ok := n.parseParallelArrays(raw); ok {
		return detections
	}

	n.logger.Warn("unrecognized detection payload shape, discarding",
		"payload_bytes", len(raw),
	)
	return []domain.Detection{}
}

// rawEntry is one detection in the list-of-objects shape.
type rawEntry struct {
	Name       flexString  `json:"name"`
	Category   flexString  `json:"category"`
	Conf       flexFloat   `json:"conf"`
	Confidence flexFloat   `json:"confidence"`
	BBox       []flexFloat `json:"bbox"`
}

// parallelPayload is the parallel-array shape: names[i], confidences[i] and
// boxes[i] describe detection i.
type parallelPayload struct {
	Names       []flexString  `json:"names"`
	Confidences []flexFloat   `json:"confidences"`
	Confs       []flexFloat   `json:"confs"`
	Boxes       [][]flexFloat `json:"boxes"`
}

func (n *Normalizer) parseObjectList(raw []byte) ([]domain.Detection, bool) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}

	detections := make([]domain.Detection, 0, len(entries))
	for i, msg := range entries {
		var entry rawEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			n.logger.Warn("dropping malformed detection entry",
				"index", i, "error", err,
			)
			continue
		}

		box := parseBox(entry.BBox)
		name := entry.Name.value
		if name == "" && box == nil {
			// Nothing identifies this entry, drop it silently.
			continue
		}
		if name == "" {
			name = domain.UnknownLabel
		}

		category := entry.Category.value
		if category == "" {
			category = domain.UnknownLabel
		}

		conf := entry.Confidence.value
		if !entry.Confidence.set {
			conf = entry.Conf.value
		}

		detections = append(detections, domain.Detection{
			Name:        name,
			Category:    category,
			Confidence:  clampConfidence(conf),
			BoundingBox: box,
		})
	}
	return detections, true
}

func (n *Normalizer) parseParallelArrays(raw []byte) ([]domain.Detection, bool) {
	var payload parallelPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}

	confs := payload.Confidences
	if len(confs) == 0 {
		confs = payload.Confs
	}

	total := len(payload.Names)
	if len(payload.Boxes) > total {
		total = len(payload.Boxes)
	}
	if total == 0 {
		return nil, false
	}

	detections := make([]domain.Detection, 0, total)
	for i := 0; i < total; i++ {
		var name string
		if i < len(payload.Names) {
			name = payload.Names[i].value
		}
		var box *domain.BoundingBox
		if i < len(payload.Boxes) {
			box = parseBox(payload.Boxes[i])
		}
		if name == "" && box == nil {
			continue
		}
		if name == "" {
			name = domain.UnknownLabel
		}

		var conf float64
		if i < len(confs) {
			conf = confs[i].value
		}

		detections = append(detections, domain.Detection{
			Name:        name,
			Category:    domain.UnknownLabel,
			Confidence:  clampConfidence(conf),
			BoundingBox: box,
		})
	}
	return detections, true
}

// parseBox converts a raw 4-element coordinate list into a bounding box.
// Any other length is treated as an absent box.
func parseBox(coords []flexFloat) *domain.BoundingBox {
	if len(coords) != 4 {
		return nil
	}
	return &domain.BoundingBox{
		X1: coords[0].value,
		Y1: coords[1].value,
		X2: coords[2].value,
		Y2: coords[3].value,
	}
}

func clampConfidence(conf float64) float64 {
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// flexString decodes a JSON string, tolerating absent, null or non-string
// values by leaving the value empty instead of failing the entry.
type flexString struct {
	value string
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.value = strings.TrimSpace(s)
	}
	return nil
}

// flexFloat decodes a JSON number or numeric string, defaulting to zero on
// anything unparsable.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		f.value = v
		f.set = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.value = parsed
			f.set = true
		}
	}
	return nil
}
