package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const driversCollection = "drivers"

// geoPoint is a GeoJSON point; coordinates are [lng, lat]
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type driverDocument struct {
	ID        string    `bson:"_id"`
	Location  geoPoint  `bson:"location"`
	SocketID  string    `bson:"socket_id,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// DriverIndex answers radius queries with $centerSphere over a 2dsphere index
type DriverIndex struct {
	Collection *mongo.Collection
}

// NewDriverIndex creates a driver index on db
func NewDriverIndex(db *mongo.Database) *DriverIndex {
	return &DriverIndex{Collection: db.Collection(driversCollection)}
}

// EnsureIndexes creates the 2dsphere index on location
func (i *DriverIndex) EnsureIndexes(ctx context.Context) error {
	if i.Collection == nil {
		return errNilCollection
	}
	_, err := i.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	return err
}

// Upsert stores the driver's position and connection handle
func (i *DriverIndex) Upsert(ctx context.Context, d driver.Driver) error {
	if i.Collection == nil {
		return errNilCollection
	}
	set := bson.M{
		"location":   geoPoint{Type: "Point", Coordinates: []float64{d.Location.Lng, d.Location.Lat}},
		"updated_at": time.Now(),
	}
	if d.ConnectionHandle != "" {
		set["socket_id"] = d.ConnectionHandle
	}
	_, err := i.Collection.UpdateOne(ctx,
		bson.M{"_id": d.ID.String()},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert driver location: %w", err)
	}
	return nil
}

// Remove deletes the driver's position
func (i *DriverIndex) Remove(ctx context.Context, id uuid.UUID) error {
	if i.Collection == nil {
		return errNilCollection
	}
	if _, err := i.Collection.DeleteOne(ctx, bson.M{"_id": id.String()}); err != nil {
		return fmt.Errorf("failed to remove driver location: %w", err)
	}
	return nil
}

// Within returns drivers inside the spherical cap of radiusKM around center
func (i *DriverIndex) Within(ctx context.Context, center ride.Coordinate, radiusKM float64) ([]driver.Driver, error) {
	if i.Collection == nil {
		return nil, errNilCollection
	}
	filter := bson.M{
		"location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{
					bson.A{center.Lng, center.Lat},
					radiusKM / ride.EarthRadiusKM,
				},
			},
		},
	}

	cursor, err := i.Collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer cursor.Close(ctx)

	drivers := make([]driver.Driver, 0)
	for cursor.Next(ctx) {
		var doc driverDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode driver: %w", err)
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil || len(doc.Location.Coordinates) != 2 {
			continue
		}
		drivers = append(drivers, driver.Driver{
			ID:               id,
			Location:         ride.Coordinate{Lat: doc.Location.Coordinates[1], Lng: doc.Location.Coordinates[0]},
			ConnectionHandle: doc.SocketID,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("driver cursor: %w", err)
	}
	return drivers, nil
}
