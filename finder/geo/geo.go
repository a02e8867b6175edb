package geo

import (
	"github.com/umahmood/haversine"

	"github.com/nearbyeats/eatery-finder/service/finder/model"
)

// DistanceKm is the great-circle distance between a and b. It does not check that the coordinates are in range.
func DistanceKm(a, b model.Coordinates) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Latitude, Lon: a.Longitude},
		haversine.Coord{Lat: b.Latitude, Lon: b.Longitude},
	)
	return km
}

// WithinRadius reports whether the place is located no further than radiusKm from center.
// A place without a location is never within any radius.
func WithinRadius(center model.Coordinates, p *model.Place, radiusKm float64) bool {
	loc, ok := p.Location()
	if !ok {
		return false
	}
	return DistanceKm(center, loc) <= radiusKm
}
