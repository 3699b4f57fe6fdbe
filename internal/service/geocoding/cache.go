package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/redis/go-redis/v9"
)

const addressKeyPrefix = "geocode:address:"

// RedisAddressCache keeps resolved addresses in Redis with a TTL
type RedisAddressCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisAddressCache creates an address cache
func NewRedisAddressCache(client *redis.Client, ttl time.Duration) *RedisAddressCache {
	return &RedisAddressCache{redis: client, ttl: ttl}
}

// Get returns a cached coordinate, if any
func (c *RedisAddressCache) Get(ctx context.Context, address string) (ride.Coordinate, bool, error) {
	val, err := c.redis.Get(ctx, addressKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ride.Coordinate{}, false, nil
	}
	if err != nil {
		return ride.Coordinate{}, false, err
	}

	var coord ride.Coordinate
	if err := json.Unmarshal(val, &coord); err != nil {
		return ride.Coordinate{}, false, err
	}
	return coord, true, nil
}

// Set caches a coordinate
func (c *RedisAddressCache) Set(ctx context.Context, address string, coord ride.Coordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, addressKey(address), data, c.ttl).Err()
}

func addressKey(address string) string {
	return addressKeyPrefix + strings.ToLower(strings.Join(strings.Fields(address), " "))
}
