// Package geo provides great-circle distance math for matching
// customers and mechanics by location.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Distance returns the haversine distance between two points in kilometers.
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// DistanceRounded returns the distance rounded to two decimal places,
// the precision reported to mechanics browsing nearby requests.
func DistanceRounded(a, b Point) float64 {
	return math.Round(Distance(a, b)*100) / 100
}
