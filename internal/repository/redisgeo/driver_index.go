package redisgeo

import (
	"context"
	"fmt"

	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	driverGeoKey     = "drivers:locations"
	driverHandlesKey = "drivers:connections"

	// redisEarthRadiusKM is the radius Redis uses for GEO distances
	redisEarthRadiusKM = 6372.7976
	// geohashSlackKM covers the precision lost by the 52-bit geohash encoding
	geohashSlackKM = 0.001
)

// DriverIndex stores driver positions in a Redis GEO set and the connection
// handle of each driver in a hash
type DriverIndex struct {
	redis *redis.Client
}

// NewDriverIndex creates a Redis backed driver index
func NewDriverIndex(client *redis.Client) *DriverIndex {
	return &DriverIndex{redis: client}
}

// Upsert records the driver's position and, if known, its connection handle
func (i *DriverIndex) Upsert(ctx context.Context, d driver.Driver) error {
	pipe := i.redis.TxPipeline()
	pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      d.ID.String(),
		Longitude: d.Location.Lng,
		Latitude:  d.Location.Lat,
	})
	if d.ConnectionHandle != "" {
		pipe.HSet(ctx, driverHandlesKey, d.ID.String(), d.ConnectionHandle)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store driver location: %w", err)
	}
	return nil
}

// Remove drops a driver from the index
func (i *DriverIndex) Remove(ctx context.Context, id uuid.UUID) error {
	pipe := i.redis.TxPipeline()
	pipe.ZRem(ctx, driverGeoKey, id.String())
	pipe.HDel(ctx, driverHandlesKey, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove driver: %w", err)
	}
	return nil
}

// Within searches the GEO set. Redis measures on a slightly larger sphere,
// so the query radius is scaled up and the caller trims to the exact cap.
func (i *DriverIndex) Within(ctx context.Context, center ride.Coordinate, radiusKM float64) ([]driver.Driver, error) {
	query := searchRadiusKM(radiusKM)
	results, err := i.redis.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     query,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby drivers: %w", err)
	}
	if len(results) == 0 {
		return []driver.Driver{}, nil
	}

	names := make([]string, len(results))
	for n, r := range results {
		names[n] = r.Name
	}
	handles, err := i.redis.HMGet(ctx, driverHandlesKey, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load driver connections: %w", err)
	}

	drivers := make([]driver.Driver, 0, len(results))
	for n, r := range results {
		id, err := uuid.Parse(r.Name)
		if err != nil {
			// not one of ours
			continue
		}
		d := driver.Driver{
			ID:       id,
			Location: ride.Coordinate{Lat: r.Latitude, Lng: r.Longitude},
		}
		if h, ok := handles[n].(string); ok {
			d.ConnectionHandle = h
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

func searchRadiusKM(radiusKM float64) float64 {
	return radiusKM*redisEarthRadiusKM/ride.EarthRadiusKM + geohashSlackKM
}
