package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/service-scheduler/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoProfileCollection implements ProfileCollection for MongoDB.
type MongoProfileCollection struct {
	Collection *mongo.Collection
}

// InsertProfile inserts a customer profile.
func (c *MongoProfileCollection) InsertProfile(ctx context.Context, profile models.CustomerProfile) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	profile.Plate = models.NormalizePlate(profile.Plate)
	// $push requires an array, never null
	if profile.ServiceHistory == nil {
		profile.ServiceHistory = []models.ServiceHistoryEntry{}
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := c.Collection.InsertOne(ctx, profile)
	return translateError(err)
}

// FindProfileByID finds a profile by its ID within the tenant scope.
func (c *MongoProfileCollection) FindProfileByID(ctx context.Context, tenantIDs []string, id string) (*models.CustomerProfile, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid profile ID %q: %w", id, ErrNotFound)
	}

	var profile models.CustomerProfile
	err = c.Collection.FindOne(ctx, bson.M{
		"_id":       objectID,
		"tenant_id": bson.M{"$in": tenantIDs},
	}).Decode(&profile)
	if err != nil {
		return nil, translateError(err)
	}
	return &profile, nil
}

// RaiseMileage sets the odometer reading when it does not go backwards.
func (c *MongoProfileCollection) RaiseMileage(ctx context.Context, id primitive.ObjectID, mileage int, at time.Time) (bool, error) {
	if c.Collection == nil {
		return false, fmt.Errorf("mongo collection is nil")
	}

	result, err := c.Collection.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"vehicle.mileage": bson.M{"$exists": false}},
				bson.M{"vehicle.mileage": nil},
				bson.M{"vehicle.mileage": bson.M{"$lte": mileage}},
			},
		},
		bson.M{"$set": bson.M{
			"vehicle.mileage":            mileage,
			"vehicle.mileage_updated_at": at,
			"updated_at":                 at,
		}},
	)
	if err != nil {
		return false, err
	}
	if result.MatchedCount > 0 {
		return true, nil
	}
	return false, c.ensureExists(ctx, id)
}

// UpsertServiceHistory records a completion in a single pipeline update.
// Entries with a higher mileage, or the same mileage and a later date, win.
func (c *MongoProfileCollection) UpsertServiceHistory(ctx context.Context, id primitive.ObjectID, entry models.ServiceHistoryEntry, at time.Time) (bool, error) {
	if c.Collection == nil {
		return false, fmt.Errorf("mongo collection is nil")
	}

	result, err := c.Collection.UpdateOne(ctx, historyFilter(id, entry), historyUpdate(entry, at))
	if err != nil {
		return false, err
	}
	if result.MatchedCount > 0 {
		return true, nil
	}
	// Either the profile is gone or a newer entry is already recorded.
	return false, c.ensureExists(ctx, id)
}

// historyFilter matches the profile unless it holds a newer entry for the key.
func historyFilter(id primitive.ObjectID, entry models.ServiceHistoryEntry) bson.M {
	newer := bson.M{
		"service_key": entry.ServiceKey,
		"$or": bson.A{
			bson.M{"last_performed_mileage": bson.M{"$gt": entry.LastPerformedMileage}},
			bson.M{
				"last_performed_mileage": entry.LastPerformedMileage,
				"last_performed_date":    bson.M{"$gt": entry.LastPerformedDate},
			},
		},
	}
	return bson.M{
		"_id":             id,
		"service_history": bson.M{"$not": bson.M{"$elemMatch": newer}},
	}
}

// historyUpdate replaces or appends the entry and raises the vehicle mileage,
// stamping mileage_updated_at only when the mileage actually moves. All
// expressions of one $set stage read the pre-update document.
func historyUpdate(entry models.ServiceHistoryEntry, at time.Time) mongo.Pipeline {
	key := bson.M{"$literal": entry.ServiceKey}
	value := bson.M{"$literal": entry}
	history := bson.M{"$ifNull": bson.A{"$service_history", bson.A{}}}
	raised := bson.M{"$lt": bson.A{bson.M{"$ifNull": bson.A{"$vehicle.mileage", -1}}, entry.LastPerformedMileage}}

	return mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"service_history": bson.M{"$cond": bson.A{
			bson.M{"$in": bson.A{key, bson.M{"$ifNull": bson.A{"$service_history.service_key", bson.A{}}}}},
			bson.M{"$map": bson.M{
				"input": history,
				"as":    "h",
				"in":    bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$$h.service_key", key}}, value, "$$h"}},
			}},
			bson.M{"$concatArrays": bson.A{history, bson.A{value}}},
		}},
		"vehicle.mileage":            bson.M{"$max": bson.A{"$vehicle.mileage", entry.LastPerformedMileage}},
		"vehicle.mileage_updated_at": bson.M{"$cond": bson.A{raised, at, "$vehicle.mileage_updated_at"}},
		"updated_at":                 at,
	}}}}
}

func (c *MongoProfileCollection) ensureExists(ctx context.Context, id primitive.ObjectID) error {
	n, err := c.Collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
