package ride

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 point in degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that both components are finite and in range
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("coordinate must be finite")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lng)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// EarthRadiusKM is the mean Earth radius used for all distance math
const EarthRadiusKM = 6371.0

// AngularDistance returns the central angle between two points in radians
func AngularDistance(a, b Coordinate) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}

	return 2 * math.Asin(math.Sqrt(h))
}

// DistanceKM calculates haversine distance between two points
func DistanceKM(a, b Coordinate) float64 {
	return AngularDistance(a, b) * EarthRadiusKM
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
