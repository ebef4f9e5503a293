package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServiceStatus is the derived state of one scheduled service.
type ServiceStatus string

const (
	StatusPending   ServiceStatus = "pending"
	StatusDue       ServiceStatus = "due"
	StatusOverdue   ServiceStatus = "overdue"
	StatusCompleted ServiceStatus = "completed"
)

// ServiceScheduleItem is one provisioned service on a vehicle schedule.
// The Last*/NextDue*/Status fields are a snapshot and are informative only.
type ServiceScheduleItem struct {
	ServiceKey           string        `bson:"service_key" json:"service_key"`
	ServiceName          string        `bson:"service_name" json:"service_name"`
	System               string        `bson:"system" json:"system"`
	MileageInterval      int           `bson:"mileage_interval" json:"mileage_interval"`
	MileageIntervalMax   *int          `bson:"mileage_interval_max,omitempty" json:"mileage_interval_max,omitempty"`
	MonthsInterval       int           `bson:"months_interval" json:"months_interval"`
	LastPerformedMileage *int          `bson:"last_performed_mileage,omitempty" json:"last_performed_mileage,omitempty"`
	LastPerformedDate    *time.Time    `bson:"last_performed_date,omitempty" json:"last_performed_date,omitempty"`
	NextDueMileage       *int          `bson:"next_due_mileage,omitempty" json:"next_due_mileage,omitempty"`
	NextDueDate          *time.Time    `bson:"next_due_date,omitempty" json:"next_due_date,omitempty"`
	Status               ServiceStatus `bson:"status" json:"status"`
	Notes                string        `bson:"notes" json:"notes"`
}

// Interval returns the cadence of the item as a tagged variant.
func (s ServiceScheduleItem) Interval() Interval {
	return NewInterval(s.MileageInterval, s.MonthsInterval)
}

// VehicleScheduleRecord is the shared maintenance plan of one vehicle identity.
// At most one record exists per (tenant_id, vehicle_id).
type VehicleScheduleRecord struct {
	ID        primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	TenantID  string                `bson:"tenant_id" json:"tenant_id"`
	VehicleID string                `bson:"vehicle_id" json:"vehicle_id"`
	Brand     string                `bson:"brand,omitempty" json:"brand,omitempty"`
	Services  []ServiceScheduleItem `bson:"services" json:"services"`
	CreatedAt time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time             `bson:"updated_at" json:"updated_at"`
}

// HasService reports whether key is provisioned on the schedule.
func (r *VehicleScheduleRecord) HasService(key string) bool {
	for _, s := range r.Services {
		if s.ServiceKey == key {
			return true
		}
	}
	return false
}
