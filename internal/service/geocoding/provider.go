package geocoding

import (
	"context"
	"errors"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// ErrNoResult is returned by a Provider that answered but found nothing
var ErrNoResult = errors.New("geocoding: no result")

// Route is a driving route summary
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Provider is a maps backend. Any error other than ErrNoResult is treated
// as the provider being unavailable.
type Provider interface {
	Geocode(ctx context.Context, address string) (ride.Coordinate, error)
	Route(ctx context.Context, origin, destination ride.Coordinate) (Route, error)
	Autocomplete(ctx context.Context, input string) ([]string, error)
}
