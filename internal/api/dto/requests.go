package dto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// CreateRideRequest represents a request to create a new ride
type CreateRideRequest struct {
	Pickup      string `json:"pickup" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	VehicleType string `json:"vehicle_type" binding:"required"`
}

// FareQuery represents GET /v1/rides/fare parameters
type FareQuery struct {
	Pickup      string `form:"pickup" binding:"required"`
	Destination string `form:"destination" binding:"required"`
	VehicleType string `form:"vehicle_type"`
}

// StartRideRequest carries the OTP the rider shows the driver
type StartRideRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// UpdateLocationRequest represents a driver location update
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// Coordinate returns the location as a validated coordinate
func (r UpdateLocationRequest) Coordinate() (ride.Coordinate, error) {
	c := ride.Coordinate{Lat: *r.Latitude, Lng: *r.Longitude}
	return c, c.Validate()
}

// ParseCoordinate accepts "lat,lng". ok is false when s does not look like a
// coordinate pair at all; err is set when it does but is out of range.
func ParseCoordinate(s string) (c ride.Coordinate, ok bool, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return ride.Coordinate{}, false, nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return ride.Coordinate{}, false, nil
	}
	c = ride.Coordinate{Lat: lat, Lng: lng}
	if err := c.Validate(); err != nil {
		return ride.Coordinate{}, true, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	return c, true, nil
}
