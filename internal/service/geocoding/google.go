package geocoding

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"googlemaps.github.io/maps"
)

// GoogleProvider uses the Google Maps Platform APIs
type GoogleProvider struct {
	client  *maps.Client
	country string
}

// NewGoogleProvider creates a Google Maps provider. Extra client options
// (a base URL for tests) are passed through.
func NewGoogleProvider(apiKey, country string, opts ...maps.ClientOption) (*GoogleProvider, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: client, country: strings.ToLower(country)}, nil
}

// Geocode resolves an address
func (p *GoogleProvider) Geocode(ctx context.Context, address string) (ride.Coordinate, error) {
	results, err := p.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  p.country,
	})
	if isZeroResults(err) {
		return ride.Coordinate{}, ErrNoResult
	}
	if err != nil {
		return ride.Coordinate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return ride.Coordinate{}, ErrNoResult
	}

	loc := results[0].Geometry.Location
	return ride.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Route returns the first driving route between two points
func (p *GoogleProvider) Route(ctx context.Context, origin, destination ride.Coordinate) (Route, error) {
	routes, _, err := p.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
		Region:      p.country,
	})
	if err != nil {
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, fmt.Errorf("no route found")
	}

	var r Route
	for _, leg := range routes[0].Legs {
		r.DistanceMeters += float64(leg.Distance.Meters)
		r.DurationSeconds += leg.Duration.Seconds()
	}
	return r, nil
}

// Autocomplete returns place predictions for partial input
func (p *GoogleProvider) Autocomplete(ctx context.Context, input string) ([]string, error) {
	req := &maps.PlaceAutocompleteRequest{Input: input}
	if p.country != "" {
		req.Components = map[maps.Component][]string{maps.ComponentCountry: {p.country}}
	}

	resp, err := p.client.PlaceAutocomplete(ctx, req)
	if isZeroResults(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	out := make([]string, 0, len(resp.Predictions))
	for _, pred := range resp.Predictions {
		out = append(out, pred.Description)
	}
	return out, nil
}

func isZeroResults(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ZERO_RESULTS")
}
