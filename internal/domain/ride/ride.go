package ride

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status represents ride status
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// transitions lists the only legal moves. There is no way back and no skip.
var transitions = map[Status]Status{
	StatusPending:  StatusAccepted,
	StatusAccepted: StatusOngoing,
	StatusOngoing:  StatusCompleted,
}

// CanTransition reports whether a ride may move from one status to another
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// VehicleType is the requested vehicle class
type VehicleType string

const (
	VehicleAuto VehicleType = "auto"
	VehicleCar  VehicleType = "car"
	VehicleMoto VehicleType = "moto"
)

// IsValid validates the vehicle type
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleAuto, VehicleCar, VehicleMoto:
		return true
	}
	return false
}

// Ride represents a single trip request and its lifecycle
type Ride struct {
	ID                 uuid.UUID   `json:"id"`
	RiderID            uuid.UUID   `json:"rider_id"`
	DriverID           *uuid.UUID  `json:"driver_id,omitempty"`
	PickupAddress      string      `json:"pickup_address"`
	Pickup             Coordinate  `json:"pickup"`
	DestinationAddress string      `json:"destination_address"`
	Destination        Coordinate  `json:"destination"`
	DistanceMeters     float64     `json:"distance_meters"`
	DurationSeconds    float64     `json:"duration_seconds"`
	Fare               float64     `json:"fare"`
	FareApproximate    bool        `json:"fare_approximate"`
	OTP                string      `json:"otp,omitempty"`
	Status             Status      `json:"status"`
	VehicleType        VehicleType `json:"vehicle_type"`
	CreatedAt          time.Time   `json:"created_at"`
	AcceptedAt         *time.Time  `json:"accepted_at,omitempty"`
	StartedAt          *time.Time  `json:"started_at,omitempty"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// WithoutOTP returns a copy of the ride with the OTP cleared
func (r *Ride) WithoutOTP() *Ride {
	cp := *r
	cp.OTP = ""
	return &cp
}

// IsAssignedTo reports whether driverID is the driver bound to this ride
func (r *Ride) IsAssignedTo(driverID uuid.UUID) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// Update carries the fields a transition may set alongside the status
type Update struct {
	DriverID *uuid.UUID
	At       time.Time
}

// Repository is the ride store. GetByID never returns the OTP; callers that
// need it for verification use GetByIDWithOTP.
//
// UpdateStatus applies the transition only when the stored status equals
// from. It returns ErrRideNotFound when no ride has the id and
// ErrInvalidState when the stored status differs, which is how a lost race
// surfaces.
type Repository interface {
	Create(ctx context.Context, ride *Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)
	GetByIDWithOTP(ctx context.Context, id uuid.UUID) (*Ride, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, upd Update) (*Ride, error)
}

// ApplyTransition sets the status and the timestamp that goes with it.
// Backends that hold rides in memory share this so the fields stay consistent.
func (r *Ride) ApplyTransition(to Status, upd Update) {
	r.Status = to
	r.UpdatedAt = upd.At
	at := upd.At
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &at
		if upd.DriverID != nil {
			id := *upd.DriverID
			r.DriverID = &id
		}
	case StatusOngoing:
		r.StartedAt = &at
	case StatusCompleted:
		r.CompletedAt = &at
	}
}
