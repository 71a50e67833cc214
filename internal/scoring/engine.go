// Package scoring converts canonical detections into a bounded reward using
// the static reward catalog.
package scoring

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ecowise-backend/internal/catalog"
	"github.com/ecowise-backend/internal/domain"
)

// Engine scores detections against the reward catalog.
type Engine struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a new scoring engine
func New(cat *catalog.Catalog, logger *slog.Logger) *Engine {
	return &Engine{catalog: cat, logger: logger}
}

// Score computes the aggregate reward for a detection list. Rewards are
// matched by category first, then name; unmatched detections contribute
// nothing but stay in the result for transparency. Totals are accumulated
// in input order so that repeated runs over the same input are bit-for-bit
// reproducible. Detection confidence does not scale the reward.
func (e *Engine) Score(detections []domain.Detection) *domain.SubmissionResult {
	result := &domain.SubmissionResult{
		Detections:      detections,
		Recommendations: make([]string, 0, len(detections)),
	}
	if result.Detections == nil {
		result.Detections = []domain.Detection{}
	}

	for _, det := range detections {
		entry, ok := e.catalog.Lookup(det.Category, det.Name)
		if !ok {
			e.logger.Debug("detection not in reward catalog",
				"name", det.Name, "category", det.Category,
			)
			result.Recommendations = append(result.Recommendations, recommendationFor(det, "dispose of"))
			continue
		}

		result.TotalPoints += entry.Points
		result.TotalCarbonSavedKg += entry.CarbonSavedKg

		action := entry.Action
		if action == "" {
			action = "recycle"
		}
		result.Recommendations = append(result.Recommendations, recommendationFor(det, action))
	}

	return result
}

// recommendationFor builds the fixed-template per-item recommendation.
func recommendationFor(det domain.Detection, action string) string {
	label := strings.ReplaceAll(det.Name, "_", " ")
	if det.Name == domain.UnknownLabel && det.Category != domain.UnknownLabel {
		label = strings.ReplaceAll(det.Category, "_", " ") + " item"
	}
	return fmt.Sprintf("Please %s the %s.", action, label)
}
