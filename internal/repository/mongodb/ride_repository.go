package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ridesCollection = "rides"

var errNilCollection = errors.New("mongodb: collection is nil")

type pointDocument struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type rideDocument struct {
	ID                 string        `bson:"_id"`
	RiderID            string        `bson:"rider_id"`
	DriverID           string        `bson:"driver_id,omitempty"`
	PickupAddress      string        `bson:"pickup_address"`
	Pickup             pointDocument `bson:"pickup"`
	DestinationAddress string        `bson:"destination_address"`
	Destination        pointDocument `bson:"destination"`
	DistanceMeters     float64       `bson:"distance_meters"`
	DurationSeconds    float64       `bson:"duration_seconds"`
	Fare               float64       `bson:"fare"`
	FareApproximate    bool          `bson:"fare_approximate"`
	OTP                string        `bson:"otp,omitempty"`
	Status             string        `bson:"status"`
	VehicleType        string        `bson:"vehicle_type"`
	CreatedAt          time.Time     `bson:"created_at"`
	AcceptedAt         *time.Time    `bson:"accepted_at,omitempty"`
	StartedAt          *time.Time    `bson:"started_at,omitempty"`
	CompletedAt        *time.Time    `bson:"completed_at,omitempty"`
	UpdatedAt          time.Time     `bson:"updated_at"`
}

// RideRepository stores rides in a MongoDB collection
type RideRepository struct {
	Collection *mongo.Collection
}

// NewRideRepository creates a ride repository on db
func NewRideRepository(db *mongo.Database) *RideRepository {
	return &RideRepository{Collection: db.Collection(ridesCollection)}
}

// Create inserts a new ride
func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	if r.Collection == nil {
		return errNilCollection
	}
	if _, err := r.Collection.InsertOne(ctx, toDocument(rd)); err != nil {
		return fmt.Errorf("failed to insert ride: %w", err)
	}
	return nil
}

// GetByID returns the ride without its OTP
func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return r.find(ctx, id, options.FindOne().SetProjection(bson.M{"otp": 0}))
}

// GetByIDWithOTP returns the ride including its OTP
func (r *RideRepository) GetByIDWithOTP(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return r.find(ctx, id, options.FindOne())
}

func (r *RideRepository) find(ctx context.Context, id uuid.UUID, opts *options.FindOneOptions) (*ride.Ride, error) {
	if r.Collection == nil {
		return nil, errNilCollection
	}
	var doc rideDocument
	err := r.Collection.FindOne(ctx, bson.M{"_id": id.String()}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ride: %w", err)
	}
	return fromDocument(&doc)
}

// UpdateStatus applies a transition only if the stored status equals from
func (r *RideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ride.Status, upd ride.Update) (*ride.Ride, error) {
	if r.Collection == nil {
		return nil, errNilCollection
	}
	if !ride.CanTransition(from, to) {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot move ride from %s to %s", from, to))
	}

	set := transitionSet(to, upd)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"otp": 0})

	var doc rideDocument
	err := r.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String(), "status": string(from)},
		bson.M{"$set": set},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := r.Collection.CountDocuments(ctx, bson.M{"_id": id.String()})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check ride: %w", cerr)
		}
		if n == 0 {
			return nil, apperrors.ErrRideNotFound
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("ride is no longer %s", from))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ride status: %w", err)
	}
	return fromDocument(&doc)
}

// transitionSet builds the $set document for a move to status to
func transitionSet(to ride.Status, upd ride.Update) bson.M {
	set := bson.M{"status": string(to), "updated_at": upd.At}
	switch to {
	case ride.StatusAccepted:
		set["accepted_at"] = upd.At
		if upd.DriverID != nil {
			set["driver_id"] = upd.DriverID.String()
		}
	case ride.StatusOngoing:
		set["started_at"] = upd.At
	case ride.StatusCompleted:
		set["completed_at"] = upd.At
	}
	return set
}

func toDocument(rd *ride.Ride) rideDocument {
	doc := rideDocument{
		ID:                 rd.ID.String(),
		RiderID:            rd.RiderID.String(),
		PickupAddress:      rd.PickupAddress,
		Pickup:             pointDocument{Lat: rd.Pickup.Lat, Lng: rd.Pickup.Lng},
		DestinationAddress: rd.DestinationAddress,
		Destination:        pointDocument{Lat: rd.Destination.Lat, Lng: rd.Destination.Lng},
		DistanceMeters:     rd.DistanceMeters,
		DurationSeconds:    rd.DurationSeconds,
		Fare:               rd.Fare,
		FareApproximate:    rd.FareApproximate,
		OTP:                rd.OTP,
		Status:             string(rd.Status),
		VehicleType:        string(rd.VehicleType),
		CreatedAt:          rd.CreatedAt,
		AcceptedAt:         rd.AcceptedAt,
		StartedAt:          rd.StartedAt,
		CompletedAt:        rd.CompletedAt,
		UpdatedAt:          rd.UpdatedAt,
	}
	if rd.DriverID != nil {
		doc.DriverID = rd.DriverID.String()
	}
	return doc
}

func fromDocument(doc *rideDocument) (*ride.Ride, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt ride id %q: %w", doc.ID, err)
	}
	riderID, err := uuid.Parse(doc.RiderID)
	if err != nil {
		return nil, fmt.Errorf("corrupt rider id %q: %w", doc.RiderID, err)
	}
	rd := &ride.Ride{
		ID:                 id,
		RiderID:            riderID,
		PickupAddress:      doc.PickupAddress,
		Pickup:             ride.Coordinate{Lat: doc.Pickup.Lat, Lng: doc.Pickup.Lng},
		DestinationAddress: doc.DestinationAddress,
		Destination:        ride.Coordinate{Lat: doc.Destination.Lat, Lng: doc.Destination.Lng},
		DistanceMeters:     doc.DistanceMeters,
		DurationSeconds:    doc.DurationSeconds,
		Fare:               doc.Fare,
		FareApproximate:    doc.FareApproximate,
		OTP:                doc.OTP,
		Status:             ride.Status(doc.Status),
		VehicleType:        ride.VehicleType(doc.VehicleType),
		CreatedAt:          doc.CreatedAt,
		AcceptedAt:         doc.AcceptedAt,
		StartedAt:          doc.StartedAt,
		CompletedAt:        doc.CompletedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
	if doc.DriverID != "" {
		driverID, err := uuid.Parse(doc.DriverID)
		if err != nil {
			return nil, fmt.Errorf("corrupt driver id %q: %w", doc.DriverID, err)
		}
		rd.DriverID = &driverID
	}
	return rd, nil
}
