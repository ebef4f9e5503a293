package schedule

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/service-scheduler/internal/db"
	"github.com/ukydev/service-scheduler/internal/models"
	"github.com/ukydev/service-scheduler/internal/notify"
	"github.com/ukydev/service-scheduler/internal/tenant"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service provisions vehicle schedules and applies the mileage and
// completion mutations. It keeps no state between calls.
type Service struct {
	catalog   db.CatalogCollection
	schedules db.ScheduleCollection
	profiles  db.ProfileCollection
	scopes    tenant.Resolver
	notifier  notify.Publisher
	scanLimit int
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier publishes an event after every applied mutation.
func WithNotifier(p notify.Publisher) Option {
	return func(s *Service) { s.notifier = p }
}

// WithScanLimit caps the catalog entries considered during provisioning.
func WithScanLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.scanLimit = limit
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scheduler service over the given collections.
func NewService(catalog db.CatalogCollection, schedules db.ScheduleCollection, profiles db.ProfileCollection, scopes tenant.Resolver, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		schedules: schedules,
		profiles:  profiles,
		scopes:    scopes,
		notifier:  notify.NopPublisher{},
		scanLimit: DefaultScanLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Completion describes one performed service.
type Completion struct {
	ServiceKey       string
	PerformedMileage int
	PerformedDate    *time.Time // defaults to now
	SaleID           string
}

// GetOrProvisionSchedule returns the vehicle's schedule, creating it from the
// tenant catalog on first use. Concurrent callers converge on one record.
func (s *Service) GetOrProvisionSchedule(ctx context.Context, tenantID, vehicleID, brandHint string) (*models.VehicleScheduleRecord, error) {
	if tenantID == "" {
		return nil, invalidInput("a tenant is required", "empty tenant id")
	}
	if vehicleID == "" {
		return nil, invalidInput("a vehicle identity is required", "empty vehicle id")
	}
	scope := s.scopes.Resolve(ctx, tenantID)
	logger := log.WithFields(log.Fields{"tenant_id": tenantID, "vehicle_id": vehicleID})

	record, err := s.schedules.FindSchedule(ctx, scope, vehicleID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	templates, err := s.catalog.FindApplicable(ctx, scope, brandHint, vehicleID, s.scanLimit)
	if err != nil {
		return nil, err
	}
	selected := SelectTemplates(templates, brandHint, vehicleID, s.scanLimit)

	now := s.now()
	record = &models.VehicleScheduleRecord{
		ID:        primitive.NewObjectID(),
		TenantID:  tenantID,
		VehicleID: vehicleID,
		Brand:     models.NormalizeMake(brandHint),
		Services:  BuildItems(selected),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.schedules.InsertSchedule(ctx, *record); err != nil {
		if !errors.Is(err, db.ErrDuplicateKey) {
			return nil, err
		}
		logger.Debug("Schedule provisioned concurrently, re-reading")
		return s.schedules.FindSchedule(ctx, scope, vehicleID)
	}

	if len(record.Services) == 0 {
		logger.Info("No applicable catalog entries, provisioned empty schedule")
	} else {
		logger.WithField("services", len(record.Services)).Info("Provisioned vehicle schedule")
	}
	return record, nil
}

// ProfileView recomputes every service for a profile.
func (s *Service) ProfileView(ctx context.Context, tenantID, profileID string) ([]models.ServiceView, error) {
	profile, record, err := s.load(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	return s.view(record, profile), nil
}

// UpdateMileage records an odometer reading. Readings lower than the stored
// one are ignored and the current view is returned.
func (s *Service) UpdateMileage(ctx context.Context, tenantID, profileID string, newMileage int) ([]models.ServiceView, error) {
	if newMileage < 0 {
		return nil, invalidInput("mileage cannot be negative", "negative mileage %d", newMileage)
	}
	profile, record, err := s.load(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"tenant_id": tenantID, "profile_id": profileID, "mileage": newMileage})

	if cur := profile.Vehicle.Mileage; cur != nil && newMileage < *cur {
		logger.WithField("stored_mileage", *cur).Debug("Ignoring stale mileage reading")
		return s.view(record, profile), nil
	}

	now := s.now()
	applied, err := s.profiles.RaiseMileage(ctx, profile.ID, newMileage, now)
	if err != nil {
		return nil, s.mapNotFound(err, "profile not found")
	}
	if !applied {
		logger.Debug("Mileage raised concurrently, re-reading profile")
		return s.ProfileView(ctx, tenantID, profileID)
	}

	profile.Vehicle.Mileage = &newMileage
	profile.Vehicle.MileageUpdatedAt = &now
	views := s.view(record, profile)
	s.publish(ctx, notify.Event{Kind: notify.EventMileageRecorded, Mileage: &newMileage}, profile, views)
	return views, nil
}

// CompleteService records a performed service and recomputes every service
// of the profile. Completions older than the recorded one are ignored.
func (s *Service) CompleteService(ctx context.Context, tenantID, profileID string, c Completion) ([]models.ServiceView, error) {
	if c.ServiceKey == "" {
		return nil, invalidInput("a service key is required", "empty service key")
	}
	if c.PerformedMileage < 0 {
		return nil, invalidInput("mileage cannot be negative", "negative performed mileage %d", c.PerformedMileage)
	}
	profile, record, err := s.load(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, notFound(errors.Newf("profile %s has no vehicle", profileID), "link the profile to a vehicle first")
	}
	if !record.HasService(c.ServiceKey) {
		return nil, invalidInput("the service is not on this vehicle's schedule", "service %q not scheduled for vehicle %s", c.ServiceKey, record.VehicleID)
	}
	logger := log.WithFields(log.Fields{
		"tenant_id":   tenantID,
		"profile_id":  profileID,
		"service_key": c.ServiceKey,
		"mileage":     c.PerformedMileage,
	})

	now := s.now()
	performed := now
	if c.PerformedDate != nil {
		performed = *c.PerformedDate
	}
	entry := models.ServiceHistoryEntry{
		ServiceKey:           c.ServiceKey,
		LastPerformedMileage: c.PerformedMileage,
		LastPerformedDate:    performed,
		SaleID:               c.SaleID,
	}

	if prev, ok := IndexHistory(profile.ServiceHistory)[c.ServiceKey]; ok && staleCompletion(entry, prev) {
		logger.WithField("stored_mileage", prev.LastPerformedMileage).Debug("Ignoring stale completion")
		return s.view(record, profile), nil
	}

	applied, err := s.profiles.UpsertServiceHistory(ctx, profile.ID, entry, now)
	if err != nil {
		return nil, s.mapNotFound(err, "profile not found")
	}
	if !applied {
		logger.Debug("Newer completion recorded concurrently, re-reading profile")
		return s.ProfileView(ctx, tenantID, profileID)
	}

	applyCompletion(profile, entry, now)
	views := s.view(record, profile)
	s.publish(ctx, notify.Event{Kind: notify.EventServiceCompleted, ServiceKey: c.ServiceKey, Mileage: profile.Vehicle.Mileage}, profile, views)
	logger.Info("Recorded service completion")
	return views, nil
}

// RefreshSnapshot writes the profile's computed view back into the shared
// schedule record. It is a staff-facing operation.
func (s *Service) RefreshSnapshot(ctx context.Context, tenantID, profileID string) ([]models.ServiceView, error) {
	profile, record, err := s.load(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, notFound(errors.Newf("profile %s has no vehicle", profileID), "link the profile to a vehicle first")
	}

	views := s.view(record, profile)
	items := lo.Map(views, func(v models.ServiceView, _ int) models.ServiceScheduleItem {
		return v.Snapshot()
	})
	if err := s.schedules.UpdateScheduleServices(ctx, record.ID, items); err != nil {
		return nil, s.mapNotFound(err, "vehicle schedule not found")
	}

	log.WithFields(log.Fields{"tenant_id": tenantID, "profile_id": profileID, "vehicle_id": record.VehicleID}).Info("Refreshed schedule snapshot")
	s.publish(ctx, notify.Event{Kind: notify.EventSnapshotRefreshed, Mileage: profile.Vehicle.Mileage}, profile, views)
	return views, nil
}

// load fetches a profile and, when it is linked to a vehicle, the vehicle's
// schedule (provisioning it if needed).
func (s *Service) load(ctx context.Context, tenantID, profileID string) (*models.CustomerProfile, *models.VehicleScheduleRecord, error) {
	if tenantID == "" {
		return nil, nil, invalidInput("a tenant is required", "empty tenant id")
	}
	if profileID == "" {
		return nil, nil, invalidInput("a profile is required", "empty profile id")
	}

	profile, err := s.profiles.FindProfileByID(ctx, s.scopes.Resolve(ctx, tenantID), profileID)
	if err != nil {
		return nil, nil, s.mapNotFound(err, "profile not found")
	}
	if profile.Vehicle.VehicleID == "" {
		return profile, nil, nil
	}

	record, err := s.GetOrProvisionSchedule(ctx, profile.TenantID, profile.Vehicle.VehicleID, profile.Vehicle.Brand)
	if err != nil {
		return nil, nil, err
	}
	return profile, record, nil
}

func (s *Service) view(record *models.VehicleScheduleRecord, profile *models.CustomerProfile) []models.ServiceView {
	if record == nil {
		return []models.ServiceView{}
	}
	return ComputeView(record.Services, profile.Vehicle.Mileage, profile.ServiceHistory, s.now())
}

func (s *Service) mapNotFound(err error, hint string) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound(err, hint)
	}
	return err
}

func (s *Service) publish(ctx context.Context, event notify.Event, profile *models.CustomerProfile, views []models.ServiceView) {
	event.TenantID = profile.TenantID
	event.ProfileID = profile.ID.Hex()
	event.VehicleID = profile.Vehicle.VehicleID
	event.Due = keysWithStatus(views, models.StatusDue)
	event.Overdue = keysWithStatus(views, models.StatusOverdue)
	event.At = s.now()

	if err := s.notifier.Publish(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"tenant_id":  event.TenantID,
			"profile_id": event.ProfileID,
			"kind":       event.Kind,
		}).Warn("Failed to publish schedule event")
	}
}

// staleCompletion reports whether next is older than the recorded prev:
// lower mileage, or the same mileage performed earlier.
func staleCompletion(next, prev models.ServiceHistoryEntry) bool {
	if next.LastPerformedMileage != prev.LastPerformedMileage {
		return next.LastPerformedMileage < prev.LastPerformedMileage
	}
	return next.LastPerformedDate.Before(prev.LastPerformedDate)
}

// applyCompletion mirrors the stored upsert on the in-memory profile.
func applyCompletion(profile *models.CustomerProfile, entry models.ServiceHistoryEntry, at time.Time) {
	replaced := false
	for i := range profile.ServiceHistory {
		if profile.ServiceHistory[i].ServiceKey == entry.ServiceKey {
			profile.ServiceHistory[i] = entry
			replaced = true
		}
	}
	if !replaced {
		profile.ServiceHistory = append(profile.ServiceHistory, entry)
	}
	if cur := profile.Vehicle.Mileage; cur == nil || entry.LastPerformedMileage > *cur {
		m := entry.LastPerformedMileage
		profile.Vehicle.Mileage = &m
		profile.Vehicle.MileageUpdatedAt = &at
	}
}

func keysWithStatus(views []models.ServiceView, status models.ServiceStatus) []string {
	return lo.FilterMap(views, func(v models.ServiceView, _ int) (string, bool) {
		return v.ServiceKey, v.Status == status
	})
}
