package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer holds the contact details of a profile owner.
type Customer struct {
	Name     string `bson:"name" json:"name"`
	Phone    string `bson:"phone" json:"phone"`
	Email    string `bson:"email" json:"email"`
	IDNumber string `bson:"id_number" json:"id_number"`
}

// VehicleInfo is the profile's view of the vehicle. Mileage is nil until the
// first odometer reading is recorded.
type VehicleInfo struct {
	Brand            string     `bson:"brand" json:"brand"`
	Line             string     `bson:"line" json:"line"`
	Engine           string     `bson:"engine" json:"engine"`
	Year             int        `bson:"year" json:"year"`
	Mileage          *int       `bson:"mileage,omitempty" json:"mileage,omitempty"` // in kilometers
	MileageUpdatedAt *time.Time `bson:"mileage_updated_at,omitempty" json:"mileage_updated_at,omitempty"`
	VehicleID        string     `bson:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
}

// ServiceHistoryEntry is the last known completion of one service.
type ServiceHistoryEntry struct {
	ServiceKey           string    `bson:"service_key" json:"service_key"`
	LastPerformedMileage int       `bson:"last_performed_mileage" json:"last_performed_mileage"`
	LastPerformedDate    time.Time `bson:"last_performed_date" json:"last_performed_date"`
	SaleID               string    `bson:"sale_id,omitempty" json:"sale_id,omitempty"`
}

// CustomerProfile is unique per (tenant_id, plate) and keeps at most one
// history entry per service key.
type CustomerProfile struct {
	ID             primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	TenantID       string                `bson:"tenant_id" json:"tenant_id"`
	Plate          string                `bson:"plate" json:"plate"`
	Customer       Customer              `bson:"customer" json:"customer"`
	Vehicle        VehicleInfo           `bson:"vehicle" json:"vehicle"`
	ServiceHistory []ServiceHistoryEntry `bson:"service_history" json:"service_history"`
	CreatedAt      time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `bson:"updated_at" json:"updated_at"`
}

// NormalizePlate strips separators and upper-cases a license plate.
func NormalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	return strings.NewReplacer(" ", "", "-", "").Replace(plate)
}

// HistoryEntry returns the recorded completion for key, if any.
func (p *CustomerProfile) HistoryEntry(key string) (ServiceHistoryEntry, bool) {
	for _, h := range p.ServiceHistory {
		if h.ServiceKey == key {
			return h, true
		}
	}
	return ServiceHistoryEntry{}, false
}
