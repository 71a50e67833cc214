package postgres

import "github.com/ecowise-backend/internal/domain"

// defaultCenters are inserted on first startup so the centers endpoints
// have data before an operator loads real locations.
var defaultCenters = []domain.RecyclingCenter{
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
}
