package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

const (
	// detourFactor scales straight-line distance to a typical road distance
	detourFactor = 1.3
	// fallbackSpeedMPS is 25 km/h
	fallbackSpeedMPS = 25.0 * 1000 / 3600
)

// RouteMetrics is the distance and duration between two points. Approximate
// is set when the values are a great-circle estimate rather than a route.
type RouteMetrics struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Approximate     bool    `json:"approximate"`
}

// AddressCache stores resolved addresses
type AddressCache interface {
	Get(ctx context.Context, address string) (ride.Coordinate, bool, error)
	Set(ctx context.Context, address string, coord ride.Coordinate) error
}

// Config holds gateway settings
type Config struct {
	// Timeout bounds every provider call; zero means the caller's deadline only
	Timeout time.Duration
	// RouteFallback enables the great-circle estimate when routing fails
	RouteFallback bool
}

// Gateway turns addresses into coordinates and coordinates into route
// metrics on top of a Provider
type Gateway struct {
	provider Provider
	cache    AddressCache
	config   Config
	logger   *logger.Logger
}

// NewGateway creates a gateway. cache may be nil.
func NewGateway(provider Provider, cache AddressCache, config Config, logger *logger.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// ResolveAddress returns the first candidate location for address
func (g *Gateway) ResolveAddress(ctx context.Context, address string) (ride.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return ride.Coordinate{}, apperrors.InvalidInput("address is required")
	}

	if g.cache != nil {
		coord, ok, err := g.cache.Get(ctx, address)
		if err != nil {
			g.logger.Warn("Address cache read failed", logger.Err(err))
		} else if ok {
			return coord, nil
		}
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	coord, err := g.provider.Geocode(callCtx, address)
	if errors.Is(err, ErrNoResult) {
		return ride.Coordinate{}, apperrors.AddressNotFound(address)
	}
	if err != nil {
		return ride.Coordinate{}, apperrors.ProviderUnavailable("failed to geocode address", err)
	}
	if err := coord.Validate(); err != nil {
		return ride.Coordinate{}, apperrors.ProviderUnavailable("provider returned an invalid coordinate", err)
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, address, coord); err != nil {
			g.logger.Warn("Address cache write failed", logger.Err(err))
		}
	}
	return coord, nil
}

// RouteMetrics returns the driving distance and duration between two points.
// If the provider fails while ctx is still live and the fallback is enabled,
// a great-circle estimate flagged Approximate is returned instead.
func (g *Gateway) RouteMetrics(ctx context.Context, origin, destination ride.Coordinate) (RouteMetrics, error) {
	if err := origin.Validate(); err != nil {
		return RouteMetrics{}, apperrors.InvalidInput(fmt.Sprintf("origin: %v", err))
	}
	if err := destination.Validate(); err != nil {
		return RouteMetrics{}, apperrors.InvalidInput(fmt.Sprintf("destination: %v", err))
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	route, err := g.provider.Route(callCtx, origin, destination)
	if err == nil && validRoute(route) {
		return RouteMetrics{DistanceMeters: route.DistanceMeters, DurationSeconds: route.DurationSeconds}, nil
	}
	if err == nil {
		err = fmt.Errorf("provider returned an invalid route: %+v", route)
	}

	if !g.config.RouteFallback || ctx.Err() != nil {
		return RouteMetrics{}, apperrors.ProviderUnavailable("failed to compute route", err)
	}

	g.logger.Warn("Route provider failed, using great-circle estimate",
		logger.Err(err),
		logger.String("origin", origin.String()),
		logger.String("destination", destination.String()),
	)
	return EstimateRoute(origin, destination), nil
}

// EstimateRoute is the great-circle fallback used when no route is available
func EstimateRoute(origin, destination ride.Coordinate) RouteMetrics {
	meters := ride.DistanceKM(origin, destination) * 1000 * detourFactor
	return RouteMetrics{
		DistanceMeters:  meters,
		DurationSeconds: meters / fallbackSpeedMPS,
		Approximate:     true,
	}
}

// Suggest returns address completions for partial input
func (g *Gateway) Suggest(ctx context.Context, partial string) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return nil, apperrors.InvalidInput("input is required")
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	suggestions, err := g.provider.Autocomplete(callCtx, partial)
	if errors.Is(err, ErrNoResult) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperrors.ProviderUnavailable("failed to fetch suggestions", err)
	}

	out := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.config.Timeout)
}

func validRoute(r Route) bool {
	return validNonNegative(r.DistanceMeters) && validNonNegative(r.DurationSeconds)
}
