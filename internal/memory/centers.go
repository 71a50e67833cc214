package memory

import (
	"context"

	"github.com/ecowise-backend/internal/domain"
)

// CenterStore serves a fixed set of example centers in development mode.
type CenterStore struct {
	centers []domain.RecyclingCenter
}

// NewCenterStore returns a center store seeded with example locations.
func NewCenterStore() *CenterStore {
	return &CenterStore{centers: []domain.RecyclingCenter{
		{
			ID:       1,
			Name:     "Hassan City Municipal Waste Center",
			Type:     "recycling",
			Address:  "Near Bus Stand, MG Road, Hassan",
			Lat:      13.0069,
			Lng:      76.0991,
			Hours:    "8:00 AM - 6:00 PM",
			Rating:   4.2,
			Services: []string{"Plastic", "Paper", "Glass", "Metal"},
			Distance: "0.5 km",
		},
		{
			ID:       2,
			Name:     "Community Donation Center",
			Type:     "donation",
			Address:  "Station Road, Hassan",
			Lat:      13.008,
			Lng:      76.1005,
			Hours:    "9:00 AM - 5:00 PM",
			Rating:   4.0,
			Services: []string{"Books", "Clothes"},
			Distance: "1.1 km",
		},
	}}
}

// ListCenters returns all centers.
func (s *CenterStore) ListCenters(ctx context.Context) ([]domain.RecyclingCenter, error) {
	out := make([]domain.RecyclingCenter, len(s.centers))
	copy(out, s.centers)
	return out, nil
}

// GetCenter returns one center by id.
func (s *CenterStore) GetCenter(ctx context.Context, id int) (*domain.RecyclingCenter, error) {
	for _, c := range s.centers {
		if c.ID == id {
			center := c
			return &center, nil
		}
	}
	return nil, domain.ErrCenterNotFound
}
