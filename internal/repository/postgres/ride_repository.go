package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Schema creates the rides table
const Schema = `
CREATE TABLE IF NOT EXISTS rides (
	id                  UUID PRIMARY KEY,
	rider_id            UUID NOT NULL,
	driver_id           UUID,
	pickup_address      TEXT NOT NULL,
	pickup_lat          DOUBLE PRECISION NOT NULL,
	pickup_lng          DOUBLE PRECISION NOT NULL,
	destination_address TEXT NOT NULL,
	destination_lat     DOUBLE PRECISION NOT NULL,
	destination_lng     DOUBLE PRECISION NOT NULL,
	distance_meters     DOUBLE PRECISION NOT NULL,
	duration_seconds    DOUBLE PRECISION NOT NULL,
	fare                DOUBLE PRECISION NOT NULL CHECK (fare >= 0),
	fare_approximate    BOOLEAN NOT NULL DEFAULT FALSE,
	otp                 CHAR(6) NOT NULL,
	status              TEXT NOT NULL,
	vehicle_type        TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	accepted_at         TIMESTAMPTZ,
	started_at          TIMESTAMPTZ,
	completed_at        TIMESTAMPTZ,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rides_rider_id ON rides (rider_id);
CREATE INDEX IF NOT EXISTS idx_rides_driver_id ON rides (driver_id);
`

// rideColumns never includes otp
const rideColumns = `id, rider_id, driver_id, pickup_address, pickup_lat, pickup_lng,
	destination_address, destination_lat, destination_lng, distance_meters, duration_seconds,
	fare, fare_approximate, status, vehicle_type, created_at, accepted_at, started_at,
	completed_at, updated_at`

type rideRow struct {
	ID                 uuid.UUID     `db:"id"`
	RiderID            uuid.UUID     `db:"rider_id"`
	DriverID           uuid.NullUUID `db:"driver_id"`
	PickupAddress      string        `db:"pickup_address"`
	PickupLat          float64       `db:"pickup_lat"`
	PickupLng          float64       `db:"pickup_lng"`
	DestinationAddress string        `db:"destination_address"`
	DestinationLat     float64       `db:"destination_lat"`
	DestinationLng     float64       `db:"destination_lng"`
	DistanceMeters     float64       `db:"distance_meters"`
	DurationSeconds    float64       `db:"duration_seconds"`
	Fare               float64       `db:"fare"`
	FareApproximate    bool          `db:"fare_approximate"`
	OTP                string        `db:"otp"`
	Status             string        `db:"status"`
	VehicleType        string        `db:"vehicle_type"`
	CreatedAt          time.Time     `db:"created_at"`
	AcceptedAt         *time.Time    `db:"accepted_at"`
	StartedAt          *time.Time    `db:"started_at"`
	CompletedAt        *time.Time    `db:"completed_at"`
	UpdatedAt          time.Time     `db:"updated_at"`
}

func (r *rideRow) toRide() *ride.Ride {
	rd := &ride.Ride{
		ID:                 r.ID,
		RiderID:            r.RiderID,
		PickupAddress:      r.PickupAddress,
		Pickup:             ride.Coordinate{Lat: r.PickupLat, Lng: r.PickupLng},
		DestinationAddress: r.DestinationAddress,
		Destination:        ride.Coordinate{Lat: r.DestinationLat, Lng: r.DestinationLng},
		DistanceMeters:     r.DistanceMeters,
		DurationSeconds:    r.DurationSeconds,
		Fare:               r.Fare,
		FareApproximate:    r.FareApproximate,
		OTP:                r.OTP,
		Status:             ride.Status(r.Status),
		VehicleType:        ride.VehicleType(r.VehicleType),
		CreatedAt:          r.CreatedAt,
		AcceptedAt:         r.AcceptedAt,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.DriverID.Valid {
		id := r.DriverID.UUID
		rd.DriverID = &id
	}
	return rd
}

// RideRepository stores rides in PostgreSQL
type RideRepository struct {
	db *sqlx.DB
}

// NewRideRepository creates a new ride repository
func NewRideRepository(db *sqlx.DB) *RideRepository {
	return &RideRepository{db: db}
}

// EnsureSchema creates the rides table if it does not exist
func (r *RideRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create rides schema: %w", err)
	}
	return nil
}

// Create inserts a new ride
func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	var driverID uuid.NullUUID
	if rd.DriverID != nil {
		driverID = uuid.NullUUID{UUID: *rd.DriverID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rides (
			id, rider_id, driver_id, pickup_address, pickup_lat, pickup_lng,
			destination_address, destination_lat, destination_lng, distance_meters,
			duration_seconds, fare, fare_approximate, otp, status, vehicle_type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rd.ID, rd.RiderID, driverID, rd.PickupAddress, rd.Pickup.Lat, rd.Pickup.Lng,
		rd.DestinationAddress, rd.Destination.Lat, rd.Destination.Lng, rd.DistanceMeters,
		rd.DurationSeconds, rd.Fare, rd.FareApproximate, rd.OTP, string(rd.Status), string(rd.VehicleType),
		rd.CreatedAt, rd.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

// GetByID returns the ride without its OTP
func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return r.get(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
}

// GetByIDWithOTP returns the ride including its OTP
func (r *RideRepository) GetByIDWithOTP(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return r.get(ctx, `SELECT `+rideColumns+`, otp FROM rides WHERE id = $1`, id)
}

func (r *RideRepository) get(ctx context.Context, query string, id uuid.UUID) (*ride.Ride, error) {
	var row rideRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return row.toRide(), nil
}

// UpdateStatus applies the transition in one conditional UPDATE, so
// concurrent callers racing on the same ride see exactly one winner.
func (r *RideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ride.Status, upd ride.Update) (*ride.Ride, error) {
	if !ride.CanTransition(from, to) {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot move ride from %s to %s", from, to))
	}
	set, args, err := transitionClause(to, upd)
	if err != nil {
		return nil, err
	}
	args = append([]interface{}{id, string(from)}, args...)

	var row rideRow
	err = r.db.GetContext(ctx, &row,
		`UPDATE rides SET `+set+` WHERE id = $1 AND status = $2 RETURNING `+rideColumns,
		args...,
	)
	if err == nil {
		return row.toRide(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update ride status: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rides WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("failed to check ride: %w", err)
	}
	if !exists {
		return nil, apperrors.ErrRideNotFound
	}
	return nil, apperrors.InvalidState(fmt.Sprintf("ride is no longer %s", from))
}

// transitionClause returns the SET list and its arguments, numbered from $3
func transitionClause(to ride.Status, upd ride.Update) (string, []interface{}, error) {
	switch to {
	case ride.StatusAccepted:
		if upd.DriverID == nil {
			return "", nil, fmt.Errorf("accepting a ride requires a driver")
		}
		return "status = $3, driver_id = $4, accepted_at = $5, updated_at = $5",
			[]interface{}{string(to), *upd.DriverID, upd.At}, nil
	case ride.StatusOngoing:
		return "status = $3, started_at = $4, updated_at = $4",
			[]interface{}{string(to), upd.At}, nil
	case ride.StatusCompleted:
		return "status = $3, completed_at = $4, updated_at = $4",
			[]interface{}{string(to), upd.At}, nil
	}
	return "", nil, fmt.Errorf("no transition into status %q", to)
}
