package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	CatalogCollectionName  = "service_catalog"
	ScheduleCollectionName = "vehicle_schedules"
	ProfileCollectionName  = "customer_profiles"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned when an insert violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// ConnectMongo connects to MongoDB and verifies the connection.
func ConnectMongo(uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the scheduler relies on. The unique
// (tenant_id, vehicle_id) index is what serializes schedule provisioning
// across processes.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		ScheduleCollectionName: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "vehicle_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_tenant_vehicle"),
			},
		},
		ProfileCollectionName: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "plate", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_tenant_plate"),
			},
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "vehicle.vehicle_id", Value: 1}},
				Options: options.Index().SetName("tenant_vehicle"),
			},
		},
		CatalogCollectionName: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "service_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_tenant_service"),
			},
			{
				Keys: bson.D{
					{Key: "tenant_id", Value: 1},
					{Key: "active", Value: 1},
					{Key: "applicability.is_common", Value: -1},
					{Key: "applicability.priority", Value: 1},
				},
				Options: options.Index().SetName("catalog_order"),
			},
		},
	}

	for name, idx := range indexes {
		created, err := database.Collection(name).Indexes().CreateMany(ctx, idx)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		log.WithFields(log.Fields{"collection": name, "indexes": created}).Debug("Ensured indexes")
	}
	return nil
}

// Store bundles the scheduler collections of one database.
type Store struct {
	Catalog   *MongoCatalogCollection
	Schedules *MongoScheduleCollection
	Profiles  *MongoProfileCollection
}

// NewStore wires the collections of database.
func NewStore(database *mongo.Database) *Store {
	return &Store{
		Catalog:   &MongoCatalogCollection{Collection: database.Collection(CatalogCollectionName)},
		Schedules: &MongoScheduleCollection{Collection: database.Collection(ScheduleCollectionName)},
		Profiles:  &MongoProfileCollection{Collection: database.Collection(ProfileCollectionName)},
	}
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return err
	}
}
