package models

import "time"

// ServiceView is the per-profile computed state of one scheduled service.
type ServiceView struct {
	ServiceKey           string        `json:"service_key"`
	ServiceName          string        `json:"service_name"`
	System               string        `json:"system"`
	MileageInterval      int           `json:"mileage_interval"`
	MileageIntervalMax   *int          `json:"mileage_interval_max,omitempty"`
	MonthsInterval       int           `json:"months_interval"`
	LastPerformedMileage *int          `json:"last_performed_mileage,omitempty"`
	LastPerformedDate    *time.Time    `json:"last_performed_date,omitempty"`
	NextDueMileage       *int          `json:"next_due_mileage"`
	NextDueDate          *time.Time    `json:"next_due_date,omitempty"`
	MileageRemaining     *int          `json:"mileage_remaining,omitempty"`
	Status               ServiceStatus `json:"status"`
	Notes                string        `json:"notes,omitempty"`
}

// Snapshot converts a computed view back into the schedule item form.
func (v ServiceView) Snapshot() ServiceScheduleItem {
	return ServiceScheduleItem{
		ServiceKey:           v.ServiceKey,
		ServiceName:          v.ServiceName,
		System:               v.System,
		MileageInterval:      v.MileageInterval,
		MileageIntervalMax:   v.MileageIntervalMax,
		MonthsInterval:       v.MonthsInterval,
		LastPerformedMileage: v.LastPerformedMileage,
		LastPerformedDate:    v.LastPerformedDate,
		NextDueMileage:       v.NextDueMileage,
		NextDueDate:          v.NextDueDate,
		Status:               v.Status,
		Notes:                v.Notes,
	}
}
