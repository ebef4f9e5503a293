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

// MongoScheduleCollection implements ScheduleCollection for MongoDB.
type MongoScheduleCollection struct {
	Collection *mongo.Collection
}

// InsertSchedule inserts a vehicle schedule record.
func (c *MongoScheduleCollection) InsertSchedule(ctx context.Context, schedule models.VehicleScheduleRecord) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if schedule.ID.IsZero() {
		schedule.ID = primitive.NewObjectID()
	}
	if schedule.Services == nil {
		schedule.Services = []models.ServiceScheduleItem{}
	}
	_, err := c.Collection.InsertOne(ctx, schedule)
	return translateError(err)
}

// FindSchedule finds the schedule of vehicleID within the tenant scope.
func (c *MongoScheduleCollection) FindSchedule(ctx context.Context, tenantIDs []string, vehicleID string) (*models.VehicleScheduleRecord, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	cursor, err := c.Collection.Find(ctx, bson.M{
		"tenant_id":  bson.M{"$in": tenantIDs},
		"vehicle_id": vehicleID,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.VehicleScheduleRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return pickByScope(records, tenantIDs)
}

// pickByScope prefers records of tenants listed earlier in the scope.
func pickByScope(records []models.VehicleScheduleRecord, tenantIDs []string) (*models.VehicleScheduleRecord, error) {
	for _, tenantID := range tenantIDs {
		for i := range records {
			if records[i].TenantID == tenantID {
				return &records[i], nil
			}
		}
	}
	return nil, ErrNotFound
}

// UpdateScheduleServices overwrites the service list of a schedule record.
func (c *MongoScheduleCollection) UpdateScheduleServices(ctx context.Context, id primitive.ObjectID, services []models.ServiceScheduleItem) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if services == nil {
		services = []models.ServiceScheduleItem{}
	}

	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"services": services, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
