// README: Pure geographic computation helpers.
package maps

import (
	"math"

	"spoke/internal/types"
)

const (
	earthRadiusKm = 6371.0

	// roadFactor corrects straight-line distance toward road distance.
	roadFactor = 1.4

	// avgCitySpeedKmh is the duration estimate used on the fallback path.
	avgCitySpeedKmh = 25.0
)

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// RoadKm approximates road distance from the great-circle distance.
func RoadKm(a, b types.Point) float64 {
	return round2(HaversineKm(a, b) * roadFactor)
}

// EstimateDurationMin converts a distance to minutes at average city speed.
func EstimateDurationMin(distanceKm float64) int {
	d := int(distanceKm / avgCitySpeedKmh * 60)
	if d < 1 {
		return 1
	}
	return d
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
