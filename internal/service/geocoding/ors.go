package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// DefaultORSEndpoint is the public OpenRouteService API
const DefaultORSEndpoint = "https://api.openrouteservice.org"

// ORSProvider talks to the OpenRouteService HTTP API
type ORSProvider struct {
	Endpoint string
	APIKey   string
	Country  string
	Client   *http.Client
}

// NewORSProvider creates an OpenRouteService provider
func NewORSProvider(endpoint, apiKey, country string, timeout time.Duration) *ORSProvider {
	if endpoint == "" {
		endpoint = DefaultORSEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ORSProvider{
		Endpoint: strings.TrimRight(endpoint, "/"),
		APIKey:   apiKey,
		Country:  country,
		Client:   &http.Client{Timeout: timeout},
	}
}

type orsFeatureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label    string `json:"label"`
			Segments []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"segments"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode resolves an address with /geocode/search
func (p *ORSProvider) Geocode(ctx context.Context, address string) (ride.Coordinate, error) {
	q := url.Values{}
	q.Set("text", address)
	q.Set("size", "1")
	p.addCountry(q)

	var out orsFeatureCollection
	if err := p.get(ctx, "/geocode/search", q, &out); err != nil {
		return ride.Coordinate{}, err
	}
	if len(out.Features) == 0 {
		return ride.Coordinate{}, ErrNoResult
	}
	c := out.Features[0].Geometry.Coordinates
	if len(c) < 2 {
		return ride.Coordinate{}, fmt.Errorf("ors: malformed geometry")
	}
	return ride.Coordinate{Lat: c[1], Lng: c[0]}, nil
}

// Route fetches a driving route with /v2/directions/driving-car
func (p *ORSProvider) Route(ctx context.Context, origin, destination ride.Coordinate) (Route, error) {
	q := url.Values{}
	q.Set("start", fmt.Sprintf("%.6f,%.6f", origin.Lng, origin.Lat))
	q.Set("end", fmt.Sprintf("%.6f,%.6f", destination.Lng, destination.Lat))

	var out orsFeatureCollection
	if err := p.get(ctx, "/v2/directions/driving-car", q, &out); err != nil {
		return Route{}, err
	}
	if len(out.Features) == 0 || len(out.Features[0].Properties.Segments) == 0 {
		return Route{}, fmt.Errorf("ors: no route in response")
	}

	var r Route
	for _, s := range out.Features[0].Properties.Segments {
		r.DistanceMeters += s.Distance
		r.DurationSeconds += s.Duration
	}
	return r, nil
}

// Autocomplete returns place labels from /geocode/autocomplete
func (p *ORSProvider) Autocomplete(ctx context.Context, input string) ([]string, error) {
	q := url.Values{}
	q.Set("text", input)
	p.addCountry(q)

	var out orsFeatureCollection
	if err := p.get(ctx, "/geocode/autocomplete", q, &out); err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(out.Features))
	for _, f := range out.Features {
		labels = append(labels, f.Properties.Label)
	}
	return labels, nil
}

func (p *ORSProvider) addCountry(q url.Values) {
	if p.Country != "" {
		q.Set("boundary.country", p.Country)
	}
}

func (p *ORSProvider) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", p.APIKey)
	req.Header.Set("Accept", "application/json, application/geo+json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ors %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ors %s: decode: %w", path, err)
	}
	return nil
}

func validNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
