package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/mock"
	"github.com/ukydev/service-scheduler/internal/db"
	"github.com/ukydev/service-scheduler/internal/models"
	"github.com/ukydev/service-scheduler/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockCatalogCollection is a mock implementation of db.CatalogCollection
type MockCatalogCollection struct {
	mock.Mock
}

func (m *MockCatalogCollection) InsertTemplate(ctx context.Context, template models.ServiceDefinitionTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockCatalogCollection) FindApplicable(ctx context.Context, tenantIDs []string, brand, vehicleID string, limit int) ([]models.ServiceDefinitionTemplate, error) {
	args := m.Called(ctx, tenantIDs, brand, vehicleID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ServiceDefinitionTemplate), args.Error(1)
}

// MockScheduleCollection is a mock implementation of db.ScheduleCollection
type MockScheduleCollection struct {
	mock.Mock
}

func (m *MockScheduleCollection) InsertSchedule(ctx context.Context, schedule models.VehicleScheduleRecord) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockScheduleCollection) FindSchedule(ctx context.Context, tenantIDs []string, vehicleID string) (*models.VehicleScheduleRecord, error) {
	args := m.Called(ctx, tenantIDs, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VehicleScheduleRecord), args.Error(1)
}

func (m *MockScheduleCollection) UpdateScheduleServices(ctx context.Context, id primitive.ObjectID, services []models.ServiceScheduleItem) error {
	args := m.Called(ctx, id, services)
	return args.Error(0)
}

// MockPublisher is a mock implementation of notify.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event notify.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// memSchedules enforces (tenant_id, vehicle_id) uniqueness like the Mongo index.
type memSchedules struct {
	mu      sync.Mutex
	records map[string]models.VehicleScheduleRecord
}

func newMemSchedules() *memSchedules {
	return &memSchedules{records: map[string]models.VehicleScheduleRecord{}}
}

func scheduleKey(tenantID, vehicleID string) string {
	return tenantID + "/" + vehicleID
}

func (s *memSchedules) InsertSchedule(_ context.Context, schedule models.VehicleScheduleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleKey(schedule.TenantID, schedule.VehicleID)
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("%w: E11000 %s", db.ErrDuplicateKey, key)
	}
	s.records[key] = schedule
	return nil
}

func (s *memSchedules) FindSchedule(_ context.Context, tenantIDs []string, vehicleID string) (*models.VehicleScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tenantID := range tenantIDs {
		if rec, ok := s.records[scheduleKey(tenantID, vehicleID)]; ok {
			rec.Services = append([]models.ServiceScheduleItem(nil), rec.Services...)
			return &rec, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memSchedules) UpdateScheduleServices(_ context.Context, id primitive.ObjectID, services []models.ServiceScheduleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.records {
		if rec.ID == id {
			rec.Services = services
			s.records[key] = rec
			return nil
		}
	}
	return db.ErrNotFound
}

func (s *memSchedules) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// memProfiles applies the same monotonic rules as the Mongo collection.
type memProfiles struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]models.CustomerProfile
}

func newMemProfiles(profiles ...models.CustomerProfile) *memProfiles {
	m := &memProfiles{profiles: map[primitive.ObjectID]models.CustomerProfile{}}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func copyProfile(p models.CustomerProfile) models.CustomerProfile {
	p.ServiceHistory = append([]models.ServiceHistoryEntry(nil), p.ServiceHistory...)
	if p.Vehicle.Mileage != nil {
		m := *p.Vehicle.Mileage
		p.Vehicle.Mileage = &m
	}
	return p
}

func (m *memProfiles) InsertProfile(_ context.Context, profile models.CustomerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = copyProfile(profile)
	return nil
}

func (m *memProfiles) FindProfileByID(_ context.Context, tenantIDs []string, id string) (*models.CustomerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrNotFound
	}
	p, ok := m.profiles[objectID]
	if !ok || !lo.Contains(tenantIDs, p.TenantID) {
		return nil, db.ErrNotFound
	}
	p = copyProfile(p)
	return &p, nil
}

func (m *memProfiles) RaiseMileage(_ context.Context, id primitive.ObjectID, mileage int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, db.ErrNotFound
	}
	if p.Vehicle.Mileage != nil && *p.Vehicle.Mileage > mileage {
		return false, nil
	}
	p.Vehicle.Mileage = &mileage
	p.Vehicle.MileageUpdatedAt = &at
	m.profiles[id] = p
	return true, nil
}

func (m *memProfiles) UpsertServiceHistory(_ context.Context, id primitive.ObjectID, entry models.ServiceHistoryEntry, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, db.ErrNotFound
	}
	p = copyProfile(p)
	_, idx, found := lo.FindIndexOf(p.ServiceHistory, func(h models.ServiceHistoryEntry) bool {
		return h.ServiceKey == entry.ServiceKey
	})
	switch {
	case found && staleCompletion(entry, p.ServiceHistory[idx]):
		return false, nil
	case found:
		p.ServiceHistory[idx] = entry
	default:
		p.ServiceHistory = append(p.ServiceHistory, entry)
	}
	if p.Vehicle.Mileage == nil || *p.Vehicle.Mileage < entry.LastPerformedMileage {
		mileage := entry.LastPerformedMileage
		p.Vehicle.Mileage = &mileage
		p.Vehicle.MileageUpdatedAt = &at
	}
	m.profiles[id] = p
	return true, nil
}

func (m *memProfiles) get(id primitive.ObjectID) models.CustomerProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyProfile(m.profiles[id])
}
