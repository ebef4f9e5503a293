package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/service-scheduler/internal/middleware"
	"github.com/ukydev/service-scheduler/internal/models"
	"github.com/ukydev/service-scheduler/internal/schedule"
)

// Scheduler is the part of schedule.Service used by the HTTP layer
type Scheduler interface {
	GetOrProvisionSchedule(ctx context.Context, tenantID, vehicleID, brandHint string) (*models.VehicleScheduleRecord, error)
	ProfileView(ctx context.Context, tenantID, profileID string) ([]models.ServiceView, error)
	UpdateMileage(ctx context.Context, tenantID, profileID string, newMileage int) ([]models.ServiceView, error)
	CompleteService(ctx context.Context, tenantID, profileID string, c schedule.Completion) ([]models.ServiceView, error)
	RefreshSnapshot(ctx context.Context, tenantID, profileID string) ([]models.ServiceView, error)
}

// MileageRequest is the body of a mileage update
type MileageRequest struct {
	Mileage *int `json:"mileage"`
}

// CompletionRequest is the body of a service completion
type CompletionRequest struct {
	PerformedMileage *int       `json:"performed_mileage"`
	PerformedDate    *time.Time `json:"performed_date,omitempty"`
	SaleID           string     `json:"sale_id,omitempty"`
}

// ServicesResponse wraps a computed profile view
type ServicesResponse struct {
	ProfileID string               `json:"profile_id"`
	Services  []models.ServiceView `json:"services"`
}

// ScheduleHandler serves vehicle schedules and profile services
type ScheduleHandler struct {
	scheduler Scheduler
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduler Scheduler) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler}
}

// Register mounts the schedule routes on mux behind the permission checks
func (h *ScheduleHandler) Register(mux *http.ServeMux, authMiddleware *middleware.AuthMiddleware) {
	guard := func(action string, fn http.HandlerFunc) http.Handler {
		return authMiddleware.RequirePermission(action)(fn)
	}
	mux.Handle("GET /api/vehicles/{vehicleId}/schedule", guard(models.ActionViewVehicle, h.GetVehicleSchedule))
	mux.Handle("GET /api/profiles/{id}/services", guard(models.ActionViewSchedule, h.GetProfileServices))
	mux.Handle("POST /api/profiles/{id}/mileage", guard(models.ActionRecordMileage, h.UpdateMileage))
	mux.Handle("POST /api/profiles/{id}/services/{key}/complete", guard(models.ActionCompleteService, h.CompleteService))
	mux.Handle("POST /api/profiles/{id}/schedule/refresh", guard(models.ActionRefreshSnapshot, h.RefreshSnapshot))
}

// GetVehicleSchedule returns the shared schedule of a vehicle, provisioning it on first use
func (h *ScheduleHandler) GetVehicleSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	record, err := h.scheduler.GetOrProvisionSchedule(r.Context(), claims.TenantID, r.PathValue("vehicleId"), r.URL.Query().Get("brand"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetProfileServices returns the computed services of a profile
func (h *ScheduleHandler) GetProfileServices(w http.ResponseWriter, r *http.Request) {
	claims, profileID, ok := h.profileClaims(w, r)
	if !ok {
		return
	}

	views, err := h.scheduler.ProfileView(r.Context(), claims.TenantID, profileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ServicesResponse{ProfileID: profileID, Services: views})
}

// UpdateMileage records an odometer reading
func (h *ScheduleHandler) UpdateMileage(w http.ResponseWriter, r *http.Request) {
	claims, profileID, ok := h.profileClaims(w, r)
	if !ok {
		return
	}

	var req MileageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mileage == nil {
		http.Error(w, "mileage is required", http.StatusBadRequest)
		return
	}

	views, err := h.scheduler.UpdateMileage(r.Context(), claims.TenantID, profileID, *req.Mileage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ServicesResponse{ProfileID: profileID, Services: views})
}

// CompleteService records a performed service
func (h *ScheduleHandler) CompleteService(w http.ResponseWriter, r *http.Request) {
	claims, profileID, ok := h.profileClaims(w, r)
	if !ok {
		return
	}

	var req CompletionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PerformedMileage == nil {
		http.Error(w, "performed_mileage is required", http.StatusBadRequest)
		return
	}

	views, err := h.scheduler.CompleteService(r.Context(), claims.TenantID, profileID, schedule.Completion{
		ServiceKey:       r.PathValue("key"),
		PerformedMileage: *req.PerformedMileage,
		PerformedDate:    req.PerformedDate,
		SaleID:           req.SaleID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ServicesResponse{ProfileID: profileID, Services: views})
}

// RefreshSnapshot persists the computed view of a profile on its vehicle schedule
func (h *ScheduleHandler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	claims, profileID, ok := h.profileClaims(w, r)
	if !ok {
		return
	}

	views, err := h.scheduler.RefreshSnapshot(r.Context(), claims.TenantID, profileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ServicesResponse{ProfileID: profileID, Services: views})
}

// profileClaims resolves the caller and checks it may act on the profile in the path.
func (h *ScheduleHandler) profileClaims(w http.ResponseWriter, r *http.Request) (*models.Claims, string, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return nil, "", false
	}
	profileID := r.PathValue("id")
	if !claims.CanAccessProfile(profileID) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return nil, "", false
	}
	return claims, profileID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case schedule.IsNotFound(err):
		http.Error(w, messageOr(schedule.Hint(err), "Not found"), http.StatusNotFound)
	case schedule.IsInvalidInput(err):
		http.Error(w, messageOr(schedule.Hint(err), "Invalid request"), http.StatusBadRequest)
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("Scheduler request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
