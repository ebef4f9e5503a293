package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Applicability restricts which vehicles a catalog entry is provisioned for.
type Applicability struct {
	Makes      []string `bson:"makes" json:"makes"`             // empty matches every brand
	VehicleIDs []string `bson:"vehicle_ids" json:"vehicle_ids"` // explicit vehicle identities
	IsCommon   bool     `bson:"is_common" json:"is_common"`
	Priority   int      `bson:"priority" json:"priority"` // lower sorts first
}

// ServiceDefinitionTemplate is a tenant-owned maintenance service definition.
type ServiceDefinitionTemplate struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID           string             `bson:"tenant_id" json:"tenant_id"`
	ServiceID          string             `bson:"service_id" json:"service_id"`
	ServiceName        string             `bson:"service_name" json:"service_name"`
	System             string             `bson:"system" json:"system"` // "engine", "brakes", "transmission", ...
	MileageInterval    int                `bson:"mileage_interval" json:"mileage_interval"`
	MileageIntervalMax *int               `bson:"mileage_interval_max,omitempty" json:"mileage_interval_max,omitempty"`
	MonthsInterval     int                `bson:"months_interval" json:"months_interval"`
	Applicability      Applicability      `bson:"applicability" json:"applicability"`
	Active             bool               `bson:"active" json:"active"`
	Notes              string             `bson:"notes" json:"notes"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// NormalizeMake returns the canonical form used to store and match brands.
func NormalizeMake(brand string) string {
	return strings.ToUpper(strings.TrimSpace(brand))
}

// Schedulable reports whether the template can be provisioned at all.
func (t *ServiceDefinitionTemplate) Schedulable() bool {
	return t.Active && t.MileageInterval > 0
}

// AppliesTo checks the applicability filter against a vehicle.
func (t *ServiceDefinitionTemplate) AppliesTo(brand, vehicleID string) bool {
	if len(t.Applicability.Makes) == 0 {
		return true
	}
	if b := NormalizeMake(brand); b != "" {
		for _, m := range t.Applicability.Makes {
			if NormalizeMake(m) == b {
				return true
			}
		}
	}
	if vehicleID != "" {
		for _, id := range t.Applicability.VehicleIDs {
			if id == vehicleID {
				return true
			}
		}
	}
	return false
}
