package db

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/ukydev/service-scheduler/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCatalogCollection implements CatalogCollection for MongoDB.
type MongoCatalogCollection struct {
	Collection *mongo.Collection
}

// InsertTemplate inserts a catalog entry, normalizing its brand list.
func (c *MongoCatalogCollection) InsertTemplate(ctx context.Context, template models.ServiceDefinitionTemplate) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if template.ID.IsZero() {
		template.ID = primitive.NewObjectID()
	}
	template.Applicability.Makes = lo.Uniq(lo.FilterMap(template.Applicability.Makes, func(m string, _ int) (string, bool) {
		n := models.NormalizeMake(m)
		return n, n != ""
	}))
	if template.Applicability.VehicleIDs == nil {
		template.Applicability.VehicleIDs = []string{}
	}
	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	_, err := c.Collection.InsertOne(ctx, template)
	return translateError(err)
}

// catalogFilter selects active, mileage-schedulable templates of the scope
// that apply to the brand or vehicle.
func catalogFilter(tenantIDs []string, brand, vehicleID string) bson.M {
	applies := bson.A{
		bson.M{"applicability.makes": bson.M{"$size": 0}},
		bson.M{"applicability.makes": nil},
	}
	if b := models.NormalizeMake(brand); b != "" {
		applies = append(applies, bson.M{"applicability.makes": b})
	}
	if vehicleID != "" {
		applies = append(applies, bson.M{"applicability.vehicle_ids": vehicleID})
	}
	return bson.M{
		"tenant_id":        bson.M{"$in": tenantIDs},
		"active":           true,
		"mileage_interval": bson.M{"$gt": 0},
		"$or":              applies,
	}
}

// FindApplicable returns templates in provisioning order, capped at limit.
func (c *MongoCatalogCollection) FindApplicable(ctx context.Context, tenantIDs []string, brand, vehicleID string, limit int) ([]models.ServiceDefinitionTemplate, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "applicability.is_common", Value: -1},
		{Key: "applicability.priority", Value: 1},
		{Key: "service_name", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := c.Collection.Find(ctx, catalogFilter(tenantIDs, brand, vehicleID), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	templates := []models.ServiceDefinitionTemplate{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}
