package models

// Role represents caller roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// Actions checked by the permission middleware
const (
	ActionViewSchedule    = "view_schedule"
	ActionRecordMileage   = "record_mileage"
	ActionCompleteService = "complete_service"
	ActionRefreshSnapshot = "refresh_snapshot"
	ActionViewVehicle     = "view_vehicle"
)

// Claims represents JWT claims
type Claims struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	ProfileID string `json:"profile_id,omitempty"` // set for self-service customers
	Role      Role   `json:"role"`
	Exp       int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	default:
		return false
	}
}

// HasPermission checks if the caller may perform an action
func (c *Claims) HasPermission(action string) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return action == ActionViewSchedule || action == ActionRecordMileage ||
			action == ActionCompleteService || action == ActionRefreshSnapshot ||
			action == ActionViewVehicle
	case RoleCustomer:
		return action == ActionViewSchedule || action == ActionRecordMileage ||
			action == ActionCompleteService
	default:
		return false
	}
}

// CanAccessProfile reports whether the caller may act on a given profile.
// Customers are limited to the profile bound to their token.
func (c *Claims) CanAccessProfile(profileID string) bool {
	if c.Role != RoleCustomer {
		return true
	}
	return c.ProfileID != "" && c.ProfileID == profileID
}
