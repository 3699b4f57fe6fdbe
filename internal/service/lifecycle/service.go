package lifecycle

import (
	"context"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/service/geocoding"
	"github.com/gocomet/ride-lifecycle/internal/service/notification"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// DefaultRadiusKM is the driver search radius around a pickup
const DefaultRadiusKM = 2.0

// Geocoder resolves addresses and routes
type Geocoder interface {
	ResolveAddress(ctx context.Context, address string) (ride.Coordinate, error)
	RouteMetrics(ctx context.Context, origin, destination ride.Coordinate) (geocoding.RouteMetrics, error)
}

// FareCalculator prices a trip
type FareCalculator interface {
	ComputeFare(vehicleType ride.VehicleType, distanceMeters float64) (float64, error)
	Supports(vehicleType ride.VehicleType) bool
	VehicleTypes() []ride.VehicleType
}

// DriverLocator finds drivers near a point
type DriverLocator interface {
	FindNearby(ctx context.Context, center ride.Coordinate, radiusKM float64) ([]driver.Driver, error)
}

// Notifier pushes events to a connection handle
type Notifier interface {
	Notify(ctx context.Context, handle string, event notification.Event)
}

// ConnectionDirectory resolves a user's live connection handle
type ConnectionDirectory interface {
	ConnectionHandle(userID, userType string) string
}

// Config holds engine settings
type Config struct {
	MatchingRadiusKM float64
}

// Deps groups the collaborators of the engine
type Deps struct {
	Rides     ride.Repository
	Geocoder  Geocoder
	Pricing   FareCalculator
	Locator   DriverLocator
	Notifier  Notifier
	Directory ConnectionDirectory
	Recorder  Recorder
	Logger    *logger.Logger
}

// Service is the ride lifecycle engine: it creates rides and drives them
// through pending, accepted, ongoing and completed
type Service struct {
	rides     ride.Repository
	geocoder  Geocoder
	pricing   FareCalculator
	locator   DriverLocator
	notifier  Notifier
	directory ConnectionDirectory
	recorder  Recorder
	logger    *logger.Logger
	config    Config

	now         func() time.Time
	generateOTP func() (string, error)
}

// NewService creates a new lifecycle engine
func NewService(deps Deps, config Config) *Service {
	if config.MatchingRadiusKM <= 0 {
		config.MatchingRadiusKM = DefaultRadiusKM
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = Recorders{}
	}
	return &Service{
		rides:       deps.Rides,
		geocoder:    deps.Geocoder,
		pricing:     deps.Pricing,
		locator:     deps.Locator,
		notifier:    deps.Notifier,
		directory:   deps.Directory,
		recorder:    recorder,
		logger:      deps.Logger,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
		generateOTP: GenerateOTP,
	}
}
