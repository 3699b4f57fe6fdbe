package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/domain/rider"
	"github.com/gocomet/ride-lifecycle/internal/service/notification"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RequestInput is a rider's ride request
type RequestInput struct {
	Pickup      string
	Destination string
	VehicleType ride.VehicleType
}

// Quote is a priced trip that has not been booked
type Quote struct {
	PickupAddress      string                       `json:"pickup_address"`
	Pickup             ride.Coordinate              `json:"pickup"`
	DestinationAddress string                       `json:"destination_address"`
	Destination        ride.Coordinate              `json:"destination"`
	DistanceMeters     float64                      `json:"distance_meters"`
	DurationSeconds    float64                      `json:"duration_seconds"`
	Approximate        bool                         `json:"approximate"`
	Fares              map[ride.VehicleType]float64 `json:"fares"`
}

// RequestRide prices and books a ride for the rider, then offers it to every
// driver near the pickup. The returned ride carries the OTP; nothing sent to
// drivers does.
func (s *Service) RequestRide(ctx context.Context, rd *rider.Rider, in RequestInput) (*ride.Ride, error) {
	if rd == nil || rd.ID == uuid.Nil {
		return nil, apperrors.Unauthorized("a rider is required to request a ride")
	}

	quote, err := s.quote(ctx, in.Pickup, in.Destination, []ride.VehicleType{in.VehicleType})
	if err != nil {
		return nil, err
	}

	otp, err := s.generateOTP()
	if err != nil {
		return nil, apperrors.Internal("failed to create ride", err)
	}

	now := s.now()
	newRide := &ride.Ride{
		ID:                 uuid.New(),
		RiderID:            rd.ID,
		PickupAddress:      quote.PickupAddress,
		Pickup:             quote.Pickup,
		DestinationAddress: quote.DestinationAddress,
		Destination:        quote.Destination,
		DistanceMeters:     quote.DistanceMeters,
		DurationSeconds:    quote.DurationSeconds,
		Fare:               quote.Fares[in.VehicleType],
		FareApproximate:    quote.Approximate,
		OTP:                otp,
		Status:             ride.StatusPending,
		VehicleType:        in.VehicleType,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.rides.Create(ctx, newRide); err != nil {
		s.logger.Error("Failed to persist ride", logger.Err(err), logger.String("rider_id", rd.ID.String()))
		return nil, apperrors.Internal("failed to create ride", err)
	}

	s.logger.Info("Ride requested",
		logger.String("ride_id", newRide.ID.String()),
		logger.String("rider_id", rd.ID.String()),
		logger.String("vehicle_type", string(newRide.VehicleType)),
		logger.Float64("fare", newRide.Fare),
		logger.Bool("fare_approximate", newRide.FareApproximate),
	)
	s.recorder.RideRequested(string(newRide.VehicleType), newRide.Fare, newRide.FareApproximate)

	s.offerToNearbyDrivers(ctx, newRide)

	return newRide, nil
}

// offerToNearbyDrivers sends new-ride to every driver near the pickup. A
// search failure is logged; the ride stays pending either way.
func (s *Service) offerToNearbyDrivers(ctx context.Context, rd *ride.Ride) {
	start := time.Now()
	drivers, err := s.locator.FindNearby(ctx, rd.Pickup, s.config.MatchingRadiusKM)
	if err != nil {
		s.logger.Warn("Driver search failed for new ride",
			logger.Err(err),
			logger.String("ride_id", rd.ID.String()),
		)
		return
	}
	s.recorder.DriversMatched(len(drivers), time.Since(start))

	event := notification.Event{
		Type:    notification.EventNewRide,
		RideID:  rd.ID.String(),
		Payload: rd.WithoutOTP(),
	}
	for _, d := range drivers {
		s.notifier.Notify(ctx, d.ConnectionHandle, event)
	}

	s.logger.Info("Ride offered to nearby drivers",
		logger.String("ride_id", rd.ID.String()),
		logger.Int("drivers", len(drivers)),
		logger.Float64("radius_km", s.config.MatchingRadiusKM),
	)
}

// QuoteFare prices a trip for one vehicle type without booking it
func (s *Service) QuoteFare(ctx context.Context, pickup, destination string, vehicleType ride.VehicleType) (*Quote, error) {
	return s.quote(ctx, pickup, destination, []ride.VehicleType{vehicleType})
}

// QuoteAllFares prices a trip for every vehicle type with a single route lookup
func (s *Service) QuoteAllFares(ctx context.Context, pickup, destination string) (*Quote, error) {
	return s.quote(ctx, pickup, destination, s.pricing.VehicleTypes())
}

// quote validates the request, resolves both addresses concurrently, routes
// between them and prices each vehicle type. Validation happens before any I/O.
func (s *Service) quote(ctx context.Context, pickup, destination string, vehicleTypes []ride.VehicleType) (*Quote, error) {
	pickup = strings.TrimSpace(pickup)
	destination = strings.TrimSpace(destination)
	if pickup == "" || destination == "" {
		return nil, apperrors.InvalidInput("pickup and destination are required")
	}
	for _, vt := range vehicleTypes {
		if !s.pricing.Supports(vt) {
			return nil, apperrors.UnknownVehicleType(string(vt))
		}
	}

	var from, to ride.Coordinate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = s.geocoder.ResolveAddress(gctx, pickup)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = s.geocoder.ResolveAddress(gctx, destination)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics, err := s.geocoder.RouteMetrics(ctx, from, to)
	if err != nil {
		return nil, err
	}

	fares := make(map[ride.VehicleType]float64, len(vehicleTypes))
	for _, vt := range vehicleTypes {
		fare, err := s.pricing.ComputeFare(vt, metrics.DistanceMeters)
		if err != nil {
			return nil, err
		}
		fares[vt] = fare
	}

	return &Quote{
		PickupAddress:      pickup,
		Pickup:             from,
		DestinationAddress: destination,
		Destination:        to,
		DistanceMeters:     metrics.DistanceMeters,
		DurationSeconds:    metrics.DurationSeconds,
		Approximate:        metrics.Approximate,
		Fares:              fares,
	}, nil
}
