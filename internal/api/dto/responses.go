package dto

import "time"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CoordinatesResponse is the result of an address lookup
type CoordinatesResponse struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// DistanceTimeResponse is the result of a route lookup
type DistanceTimeResponse struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Approximate     bool    `json:"approximate"`
}

// SuggestionsResponse lists address completions
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// LocationUpdateResponse acknowledges a driver location update
type LocationUpdateResponse struct {
	Status    string    `json:"status"`
	DriverID  string    `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}
