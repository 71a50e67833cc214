package domain

import "time"

// GuestUsername is used when the caller does not supply a username.
const GuestUsername = "guest"

// UserAccount holds the durable cumulative stats for one user. EcoPoints and
// ItemsRecycled are monotonically non-decreasing; Level is always derived
// from EcoPoints and never set independently.
type UserAccount struct {
	Username      string    `json:"username"`
	Level         string    `json:"level"`
	EcoPoints     int       `json:"eco_points"`
	ItemsRecycled int       `json:"items_recycled"`
	CarbonSavedKg float64   `json:"carbon_saved_kg"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryRecord is one append-only entry per accepted submission.
type HistoryRecord struct {
	Username        string    `json:"username"`
	Filename        string    `json:"filename"`
	ProcessedAt     time.Time `json:"processed_at"`
	PointsEarned    int       `json:"points_earned"`
	CarbonSavedKg   float64   `json:"carbon_saved_kg"`
	ObjectsDetected int       `json:"objects_detected"`
	StoredPath      string    `json:"stored_path,omitempty"`
}

// Submission is the ledger-facing delta produced by scoring one upload.
type Submission struct {
	Filename   string
	StoredPath string
	Points     int
	Items      int
	CarbonKg   float64
}

// LeaderboardEntry is a derived ranking view, never persisted.
type LeaderboardEntry struct {
	Rank      int64  `json:"rank"`
	Username  string `json:"username"`
	EcoPoints int    `json:"eco_points"`
	Level     string `json:"level"`
}

// RecycleEvent is an already-scored submission arriving over the event bus.
type RecycleEvent struct {
	Username  string    `json:"username"`
	Points    int       `json:"points"`
	Items     int       `json:"items"`
	CarbonKg  float64   `json:"carbon_kg"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RecyclingCenter is a drop-off location served to the frontend.
type RecyclingCenter struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Address  string   `json:"address"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Hours    string   `json:"hours"`
	Rating   float64  `json:"rating"`
	Services []string `json:"services"`
	Distance string   `json:"distance"`
	Phone    string   `json:"phone"`
	Website  string   `json:"website,omitempty"`
}

// Directions is a fixed-template route description for one center.
type Directions struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Directions string   `json:"directions"`
	Transport  []string `json:"transport"`
	Landmarks  []string `json:"landmarks"`
	Phone      string   `json:"phone"`
}

// SystemStats is an aggregate snapshot across all users and centers.
type SystemStats struct {
	Users       int64 `json:"users"`
	TotalPoints int64 `json:"total_points"`
	Centers     int64 `json:"centers"`
}
