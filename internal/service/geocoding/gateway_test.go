package geocoding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	coords      map[string]ride.Coordinate
	route       Route
	routeErr    error
	geocodeErr  error
	suggestions []string
	suggestErr  error

	mu       sync.Mutex
	geocodes int
}

func (f *fakeProvider) Geocode(_ context.Context, address string) (ride.Coordinate, error) {
	f.mu.Lock()
	f.geocodes++
	f.mu.Unlock()
	if f.geocodeErr != nil {
		return ride.Coordinate{}, f.geocodeErr
	}
	c, ok := f.coords[address]
	if !ok {
		return ride.Coordinate{}, ErrNoResult
	}
	return c, nil
}

func (f *fakeProvider) Route(ctx context.Context, _, _ ride.Coordinate) (Route, error) {
	if f.routeErr != nil {
		return Route{}, f.routeErr
	}
	return f.route, ctx.Err()
}

func (f *fakeProvider) Autocomplete(context.Context, string) ([]string, error) {
	return f.suggestions, f.suggestErr
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]ride.Coordinate
}

func (m *mapCache) Get(_ context.Context, address string) (ride.Coordinate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[address]
	return c, ok, nil
}

func (m *mapCache) Set(_ context.Context, address string, coord ride.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[address] = coord
	return nil
}

var (
	mgRoad      = ride.Coordinate{Lat: 12.9756, Lng: 77.6066}
	indiranagar = ride.Coordinate{Lat: 12.9784, Lng: 77.6408}
)

func newGateway(p Provider, cache AddressCache) *Gateway {
	return NewGateway(p, cache, Config{Timeout: time.Second, RouteFallback: true}, logger.NewNop())
}

func TestResolveAddress(t *testing.T) {
	p := &fakeProvider{coords: map[string]ride.Coordinate{"MG Road": mgRoad}}
	g := newGateway(p, nil)
	ctx := context.Background()

	got, err := g.ResolveAddress(ctx, "  MG Road ")
	require.NoError(t, err)
	assert.Equal(t, mgRoad, got)

	_, err = g.ResolveAddress(ctx, "nowhere")
	assert.ErrorIs(t, err, apperrors.ErrAddressNotFound)

	_, err = g.ResolveAddress(ctx, "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestResolveAddress_EmptyInputDoesNoIO(t *testing.T) {
	p := &fakeProvider{}
	g := newGateway(p, nil)

	_, err := g.ResolveAddress(context.Background(), "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, p.geocodes)
}

func TestResolveAddress_ProviderFailure(t *testing.T) {
	g := newGateway(&fakeProvider{geocodeErr: errors.New("connection refused")}, nil)

	_, err := g.ResolveAddress(context.Background(), "MG Road")

	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestResolveAddress_UsesCache(t *testing.T) {
	p := &fakeProvider{coords: map[string]ride.Coordinate{"MG Road": mgRoad}}
	cache := &mapCache{items: map[string]ride.Coordinate{}}
	g := newGateway(p, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := g.ResolveAddress(ctx, "MG Road")
		require.NoError(t, err)
		assert.Equal(t, mgRoad, got)
	}
	assert.Equal(t, 1, p.geocodes)
}

func TestRouteMetrics(t *testing.T) {
	g := newGateway(&fakeProvider{route: Route{DistanceMeters: 5000, DurationSeconds: 900}}, nil)

	got, err := g.RouteMetrics(context.Background(), mgRoad, indiranagar)

	require.NoError(t, err)
	assert.Equal(t, RouteMetrics{DistanceMeters: 5000, DurationSeconds: 900}, got)
}

func TestRouteMetrics_InvalidCoordinates(t *testing.T) {
	g := newGateway(&fakeProvider{}, nil)

	_, err := g.RouteMetrics(context.Background(), ride.Coordinate{Lat: 200}, indiranagar)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRouteMetrics_FallbackEstimate(t *testing.T) {
	g := newGateway(&fakeProvider{routeErr: errors.New("502 bad gateway")}, nil)

	got, err := g.RouteMetrics(context.Background(), mgRoad, indiranagar)

	require.NoError(t, err)
	assert.True(t, got.Approximate)
	straight := ride.DistanceKM(mgRoad, indiranagar) * 1000
	assert.InDelta(t, straight*1.3, got.DistanceMeters, 1e-6)
	assert.InDelta(t, got.DistanceMeters/(25.0/3.6), got.DurationSeconds, 1e-6)
}

func TestRouteMetrics_CallerDeadlineIsUnavailable(t *testing.T) {
	g := newGateway(&fakeProvider{routeErr: context.Canceled}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.RouteMetrics(ctx, mgRoad, indiranagar)

	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestRouteMetrics_FallbackDisabled(t *testing.T) {
	g := NewGateway(&fakeProvider{routeErr: errors.New("boom")}, nil, Config{}, logger.NewNop())

	_, err := g.RouteMetrics(context.Background(), mgRoad, indiranagar)

	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()

	g := newGateway(&fakeProvider{suggestions: []string{"MG Road, Bengaluru", "", "MG Road, Pune"}}, nil)
	got, err := g.Suggest(ctx, "MG Ro")
	require.NoError(t, err)
	assert.Equal(t, []string{"MG Road, Bengaluru", "MG Road, Pune"}, got)

	g = newGateway(&fakeProvider{}, nil)
	got, err = g.Suggest(ctx, "zzzz")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = g.Suggest(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	g = newGateway(&fakeProvider{suggestErr: errors.New("timeout")}, nil)
	_, err = g.Suggest(ctx, "MG")
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}
