package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/google/uuid"
)

// capTolerance absorbs floating point noise at the cap boundary (radians)
const capTolerance = 1e-12

// DriverIndex is a spatial store of driver positions. Within may return a
// superset of the drivers in the cap; the Locator applies the exact rule.
type DriverIndex interface {
	Within(ctx context.Context, center ride.Coordinate, radiusKM float64) ([]driver.Driver, error)
	Upsert(ctx context.Context, d driver.Driver) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// ConnectionDirectory resolves a user's live connection handle
type ConnectionDirectory interface {
	ConnectionHandle(userID, userType string) string
}

// Locator finds drivers near a point
type Locator struct {
	index     DriverIndex
	directory ConnectionDirectory
	logger    *logger.Logger
}

// NewLocator creates a new driver locator. directory may be nil.
func NewLocator(index DriverIndex, directory ConnectionDirectory, logger *logger.Logger) *Locator {
	return &Locator{
		index:     index,
		directory: directory,
		logger:    logger,
	}
}

// FindNearby returns every known driver whose position lies inside the
// spherical cap of radiusKM around center, nearest first and without
// duplicates. An empty area yields an empty slice.
func (l *Locator) FindNearby(ctx context.Context, center ride.Coordinate, radiusKM float64) ([]driver.Driver, error) {
	if math.IsNaN(radiusKM) || math.IsInf(radiusKM, 0) || radiusKM <= 0 {
		return nil, apperrors.InvalidInput("radius must be a positive finite number")
	}
	if err := center.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	startTime := time.Now()
	candidates, err := l.index.Within(ctx, center, radiusKM)
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby drivers: %w", err)
	}

	maxAngle := radiusKM / ride.EarthRadiusKM
	type hit struct {
		d     driver.Driver
		angle float64
	}
	seen := make(map[uuid.UUID]int, len(candidates))
	hits := make([]hit, 0, len(candidates))
	for _, c := range candidates {
		angle := ride.AngularDistance(center, c.Location)
		if angle > maxAngle+capTolerance {
			continue
		}
		if i, dup := seen[c.ID]; dup {
			// keep the closer sighting
			if angle < hits[i].angle {
				hits[i] = hit{d: c, angle: angle}
			}
			continue
		}
		seen[c.ID] = len(hits)
		hits = append(hits, hit{d: c, angle: angle})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].angle < hits[j].angle })

	drivers := make([]driver.Driver, 0, len(hits))
	for _, h := range hits {
		d := h.d
		// the live connection wins over the handle stored with the last location update
		if l.directory != nil {
			if live := l.directory.ConnectionHandle(d.ID.String(), driver.UserType); live != "" {
				d.ConnectionHandle = live
			}
		}
		drivers = append(drivers, d)
	}

	l.logger.Debug("Nearby drivers located",
		logger.String("center", center.String()),
		logger.Float64("radius_km", radiusKM),
		logger.Int("scanned", len(candidates)),
		logger.Int("found", len(drivers)),
		logger.Duration("latency", time.Since(startTime)),
	)

	return drivers, nil
}

// UpdateLocation records a driver's latest position
func (l *Locator) UpdateLocation(ctx context.Context, d driver.Driver) error {
	if d.ID == uuid.Nil {
		return apperrors.InvalidInput("driver id is required")
	}
	if err := d.Location.Validate(); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	if err := l.index.Upsert(ctx, d); err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}
	return nil
}

// GoOffline removes a driver from matching until their next location update
func (l *Locator) GoOffline(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperrors.InvalidInput("driver id is required")
	}
	if err := l.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove driver location: %w", err)
	}
	l.logger.Info("Driver went offline", logger.String("driver_id", id.String()))
	return nil
}
