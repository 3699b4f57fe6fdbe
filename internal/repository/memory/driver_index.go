package memory

import (
	"context"
	"sync"

	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/google/uuid"
)

// DriverIndex holds the last known position of every driver and scans
// them linearly
type DriverIndex struct {
	mu      sync.RWMutex
	drivers map[uuid.UUID]driver.Driver
}

// NewDriverIndex creates an empty index
func NewDriverIndex() *DriverIndex {
	return &DriverIndex{drivers: make(map[uuid.UUID]driver.Driver)}
}

// Upsert records the driver's position
func (i *DriverIndex) Upsert(_ context.Context, d driver.Driver) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.drivers[d.ID] = d
	return nil
}

// Remove forgets a driver
func (i *DriverIndex) Remove(_ context.Context, id uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.drivers, id)
	return nil
}

// Within returns the drivers within radiusKM of center
func (i *DriverIndex) Within(_ context.Context, center ride.Coordinate, radiusKM float64) ([]driver.Driver, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	maxAngle := radiusKM / ride.EarthRadiusKM
	result := make([]driver.Driver, 0)
	for _, d := range i.drivers {
		if ride.AngularDistance(center, d.Location) <= maxAngle+1e-12 {
			result = append(result, d)
		}
	}
	return result, nil
}
