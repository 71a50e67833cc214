package domain

// BoundingBox is the pixel-space rectangle of one detected item,
// in x1,y1 (top-left) / x2,y2 (bottom-right) order.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// UnknownLabel is assigned to detections whose name or category could not
// be determined from the backend output.
const UnknownLabel = "unknown"

// Detection is one canonical, backend-agnostic recognized item. Detections
// are produced only by the normalizer and are immutable once created.
type Detection struct {
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

// SubmissionResult is the scored outcome of a single submission. It is
// created per request and never persisted as-is; its totals feed the ledger.
type SubmissionResult struct {
	Detections         []Detection `json:"detections"`
	TotalPoints        int         `json:"total_points"`
	TotalCarbonSavedKg float64     `json:"total_carbon_saved_kg"`
	Recommendations    []string    `json:"recommendations"`
}

// ObjectsDetected returns the number of detections in the result.
func (r *SubmissionResult) ObjectsDetected() int {
	return len(r.Detections)
}
