package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is Earth's mean radius.
const EarthRadiusMeters = 6371000.0

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Interpolate returns the point at fraction t along the straight segment from
// p0 to p1. Each coordinate is blended linearly; path segments are short enough
// that no wraparound handling is needed. t is clamped to [0,1].
func Interpolate(p0, p1 Point, t float64) Point {
	if t <= 0 {
		return p0
	}
	if t >= 1 {
		return p1
	}
	return Point{
		Lat: p0.Lat + (p1.Lat-p0.Lat)*t,
		Lon: p0.Lon + (p1.Lon-p0.Lon)*t,
	}
}

// Bearing returns the initial compass bearing for travel from p0 to p1,
// in degrees clockwise from north, normalized to [0,360).
func Bearing(p0, p1 Point) float64 {
	lat0 := p0.Lat * math.Pi / 180
	lat1 := p1.Lat * math.Pi / 180
	dLon := (p1.Lon - p0.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat1)
	x := math.Cos(lat0)*math.Sin(lat1) - math.Sin(lat0)*math.Cos(lat1)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(p0, p1 Point) float64 {
	a := s2.LatLngFromDegrees(p0.Lat, p0.Lon)
	b := s2.LatLngFromDegrees(p1.Lat, p1.Lon)
	return a.Distance(b).Radians() * EarthRadiusMeters
}
