package db

import (
	"context"
	"time"

	"github.com/ukydev/service-scheduler/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CatalogCollection defines the interface for service catalog operations.
type CatalogCollection interface {
	InsertTemplate(ctx context.Context, template models.ServiceDefinitionTemplate) error
	FindApplicable(ctx context.Context, tenantIDs []string, brand, vehicleID string, limit int) ([]models.ServiceDefinitionTemplate, error)
}

// ScheduleCollection defines the interface for vehicle schedule operations.
type ScheduleCollection interface {
	// InsertSchedule returns ErrDuplicateKey when a record already exists
	// for (tenant_id, vehicle_id).
	InsertSchedule(ctx context.Context, schedule models.VehicleScheduleRecord) error
	// FindSchedule returns the record of the first tenant in tenantIDs that has one.
	FindSchedule(ctx context.Context, tenantIDs []string, vehicleID string) (*models.VehicleScheduleRecord, error)
	UpdateScheduleServices(ctx context.Context, id primitive.ObjectID, services []models.ServiceScheduleItem) error
}

// ProfileCollection defines the interface for customer profile operations.
type ProfileCollection interface {
	InsertProfile(ctx context.Context, profile models.CustomerProfile) error
	FindProfileByID(ctx context.Context, tenantIDs []string, id string) (*models.CustomerProfile, error)
	// RaiseMileage stores mileage unless a higher reading is already stored.
	// It reports whether the write was applied.
	RaiseMileage(ctx context.Context, id primitive.ObjectID, mileage int, at time.Time) (bool, error)
	// UpsertServiceHistory replaces or appends the entry for its service key
	// unless a newer one is already recorded (higher mileage, or the same
	// mileage and a later date). The vehicle mileage is raised to the
	// performed mileage in the same write, stamped with at. It reports
	// whether the write was applied.
	UpsertServiceHistory(ctx context.Context, id primitive.ObjectID, entry models.ServiceHistoryEntry, at time.Time) (bool, error)
}
