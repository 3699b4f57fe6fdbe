package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/domain/rider"
	"github.com/gocomet/ride-lifecycle/internal/service/notification"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/google/uuid"
)

// Principal is the acting user. Exactly one of Rider or Driver is set.
type Principal struct {
	Rider  *rider.Rider
	Driver *driver.Driver
}

// Confirmation is the payload riders receive when a driver accepts
type Confirmation struct {
	Ride   *ride.Ride     `json:"ride"`
	Driver AssignedDriver `json:"driver"`
}

// AssignedDriver is what a rider learns about the driver who accepted
type AssignedDriver struct {
	ID uuid.UUID `json:"id"`
}

// AcceptRide assigns the driver to a pending ride. When several drivers race
// for the same ride exactly one wins; the rest get InvalidState.
func (s *Service) AcceptRide(ctx context.Context, rideID uuid.UUID, d *driver.Driver) (*ride.Ride, error) {
	if err := requireDriver(d); err != nil {
		return nil, err
	}

	current, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if current.Status != ride.StatusPending {
		return nil, invalidTransition(current.Status, ride.StatusAccepted)
	}

	driverID := d.ID
	accepted, err := s.rides.UpdateStatus(ctx, rideID, ride.StatusPending, ride.StatusAccepted, ride.Update{
		DriverID: &driverID,
		At:       s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.transitioned(accepted, d)
	s.notifyRider(ctx, accepted, notification.EventRideConfirmed, Confirmation{Ride: accepted, Driver: AssignedDriver{ID: d.ID}})
	return accepted, nil
}

// StartRide verifies the rider's OTP and moves an accepted ride to ongoing.
// Checks run in order: ride exists, ride is accepted, caller is the assigned
// driver, OTP matches.
func (s *Service) StartRide(ctx context.Context, rideID uuid.UUID, otp string, d *driver.Driver) (*ride.Ride, error) {
	if err := requireDriver(d); err != nil {
		return nil, err
	}
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, apperrors.InvalidInput("otp is required")
	}

	current, err := s.rides.GetByIDWithOTP(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if current.Status != ride.StatusAccepted {
		return nil, invalidTransition(current.Status, ride.StatusOngoing)
	}
	if !current.IsAssignedTo(d.ID) {
		return nil, apperrors.Unauthorized("ride is assigned to another driver")
	}
	if !otpMatches(current.OTP, otp) {
		s.logger.Warn("OTP mismatch on ride start",
			logger.String("ride_id", rideID.String()),
			logger.String("driver_id", d.ID.String()),
		)
		return nil, apperrors.ErrInvalidOtp
	}

	started, err := s.rides.UpdateStatus(ctx, rideID, ride.StatusAccepted, ride.StatusOngoing, ride.Update{At: s.now()})
	if err != nil {
		return nil, err
	}

	s.transitioned(started, d)
	s.notifyRider(ctx, started, notification.EventRideStarted, started)
	return started, nil
}

// EndRide completes an ongoing ride. Only the assigned driver may end it.
func (s *Service) EndRide(ctx context.Context, rideID uuid.UUID, d *driver.Driver) (*ride.Ride, error) {
	if err := requireDriver(d); err != nil {
		return nil, err
	}

	current, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if current.Status != ride.StatusOngoing {
		return nil, invalidTransition(current.Status, ride.StatusCompleted)
	}
	if !current.IsAssignedTo(d.ID) {
		return nil, apperrors.Unauthorized("ride is assigned to another driver")
	}

	completed, err := s.rides.UpdateStatus(ctx, rideID, ride.StatusOngoing, ride.StatusCompleted, ride.Update{At: s.now()})
	if err != nil {
		return nil, err
	}

	s.transitioned(completed, d)
	s.notifyRider(ctx, completed, notification.EventRideEnded, completed)
	return completed, nil
}

// GetRide returns a ride without its OTP. The rider who requested it and
// the assigned driver can always see it; any driver can see a pending ride.
func (s *Service) GetRide(ctx context.Context, rideID uuid.UUID, p Principal) (*ride.Ride, error) {
	if p.Rider == nil && p.Driver == nil {
		return nil, apperrors.Unauthorized("a rider or driver is required")
	}

	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Rider != nil && p.Rider.ID == rd.RiderID:
	case p.Driver != nil && rd.IsAssignedTo(p.Driver.ID):
	case p.Driver != nil && rd.Status == ride.StatusPending:
	default:
		return nil, apperrors.Unauthorized("not allowed to view this ride")
	}
	return rd, nil
}

func (s *Service) transitioned(rd *ride.Ride, d *driver.Driver) {
	s.logger.Info("Ride status changed",
		logger.String("ride_id", rd.ID.String()),
		logger.String("driver_id", d.ID.String()),
		logger.String("status", string(rd.Status)),
	)
	s.recorder.RideTransitioned(string(rd.Status))
}

// notifyRider looks up the rider's current connection at send time; a rider
// who is offline simply misses the event
func (s *Service) notifyRider(ctx context.Context, rd *ride.Ride, eventType string, payload interface{}) {
	var handle string
	if s.directory != nil {
		handle = s.directory.ConnectionHandle(rd.RiderID.String(), rider.UserType)
	}
	s.notifier.Notify(ctx, handle, notification.Event{
		Type:    eventType,
		RideID:  rd.ID.String(),
		Payload: payload,
	})
}

func requireDriver(d *driver.Driver) error {
	if d == nil || d.ID == uuid.Nil {
		return apperrors.Unauthorized("only drivers can perform this action")
	}
	return nil
}

func invalidTransition(from, to ride.Status) error {
	return apperrors.InvalidState(fmt.Sprintf("cannot move ride from %s to %s", from, to))
}
