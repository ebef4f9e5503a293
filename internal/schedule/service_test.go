package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/service-scheduler/internal/db"
	"github.com/ukydev/service-scheduler/internal/models"
	"github.com/ukydev/service-scheduler/internal/notify"
	"github.com/ukydev/service-scheduler/internal/tenant"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testTenant = "shop-a"

func fixedClock() time.Time { return testNow }

func oilTemplates() []models.ServiceDefinitionTemplate {
	return []models.ServiceDefinitionTemplate{
		{TenantID: testTenant, ServiceID: "OIL", ServiceName: "Oil change", MileageInterval: 10000, MonthsInterval: 6, Active: true, Applicability: models.Applicability{IsCommon: true}},
		{TenantID: testTenant, ServiceID: "AIR", ServiceName: "Air filter", MileageInterval: 20000, Active: true},
	}
}

func scheduleFixture(vehicleID string) models.VehicleScheduleRecord {
	return models.VehicleScheduleRecord{
		ID:        primitive.NewObjectID(),
		TenantID:  testTenant,
		VehicleID: vehicleID,
		Services:  BuildItems(SelectTemplates(oilTemplates(), "", vehicleID, 100)),
	}
}

func profileFixture(vehicleID string, mileage *int, history ...models.ServiceHistoryEntry) models.CustomerProfile {
	return models.CustomerProfile{
		ID:             primitive.NewObjectID(),
		TenantID:       testTenant,
		Plate:          "ABC123",
		Vehicle:        models.VehicleInfo{Brand: "Toyota", Mileage: mileage, VehicleID: vehicleID},
		ServiceHistory: history,
	}
}

func findView(t *testing.T, views []models.ServiceView, key string) models.ServiceView {
	t.Helper()
	for _, v := range views {
		if v.ServiceKey == key {
			return v
		}
	}
	t.Fatalf("service %s not in view", key)
	return models.ServiceView{}
}

func TestService_GetOrProvisionSchedule(t *testing.T) {
	ctx := context.Background()
	scopes := tenant.NewStaticResolver(nil)

	t.Run("existing record is returned", func(t *testing.T) {
		catalog := new(MockCatalogCollection)
		schedules := new(MockScheduleCollection)
		existing := scheduleFixture("veh-1")
		schedules.On("FindSchedule", mock.Anything, []string{testTenant}, "veh-1").Return(&existing, nil)

		s := NewService(catalog, schedules, newMemProfiles(), scopes)
		rec, err := s.GetOrProvisionSchedule(ctx, testTenant, "veh-1", "Toyota")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, rec.ID)
		catalog.AssertNotCalled(t, "FindApplicable", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		schedules.AssertNotCalled(t, "InsertSchedule", mock.Anything, mock.Anything)
	})

	t.Run("missing record is provisioned from the catalog", func(t *testing.T) {
		catalog := new(MockCatalogCollection)
		schedules := new(MockScheduleCollection)
		schedules.On("FindSchedule", mock.Anything, []string{testTenant}, "veh-1").Return(nil, db.ErrNotFound)
		catalog.On("FindApplicable", mock.Anything, []string{testTenant}, "Toyota", "veh-1", 50).Return(oilTemplates(), nil)
		schedules.On("InsertSchedule", mock.Anything, mock.MatchedBy(func(rec models.VehicleScheduleRecord) bool {
			return rec.TenantID == testTenant && rec.VehicleID == "veh-1" && len(rec.Services) == 2
		})).Return(nil)

		s := NewService(catalog, schedules, newMemProfiles(), scopes, WithScanLimit(50), WithClock(fixedClock))
		rec, err := s.GetOrProvisionSchedule(ctx, testTenant, "veh-1", "Toyota")
		require.NoError(t, err)
		assert.Equal(t, "TOYOTA", rec.Brand)
		assert.Equal(t, testNow, rec.CreatedAt)
		require.Len(t, rec.Services, 2)
		assert.Equal(t, "OIL", rec.Services[0].ServiceKey)
		assert.Equal(t, "AIR", rec.Services[1].ServiceKey)
		for _, item := range rec.Services {
			assert.Equal(t, models.StatusPending, item.Status)
			assert.Nil(t, item.LastPerformedMileage)
		}
		schedules.AssertExpectations(t)
		catalog.AssertExpectations(t)
	})

	t.Run("empty catalog yields an empty schedule", func(t *testing.T) {
		catalog := new(MockCatalogCollection)
		schedules := new(MockScheduleCollection)
		schedules.On("FindSchedule", mock.Anything, mock.Anything, "veh-2").Return(nil, db.ErrNotFound)
		catalog.On("FindApplicable", mock.Anything, mock.Anything, "", "veh-2", DefaultScanLimit).Return([]models.ServiceDefinitionTemplate{}, nil)
		schedules.On("InsertSchedule", mock.Anything, mock.Anything).Return(nil)

		s := NewService(catalog, schedules, newMemProfiles(), scopes)
		rec, err := s.GetOrProvisionSchedule(ctx, testTenant, "veh-2", "")
		require.NoError(t, err)
		assert.Empty(t, rec.Services)
	})

	t.Run("uniqueness violation is recovered by re-reading", func(t *testing.T) {
		catalog := new(MockCatalogCollection)
		schedules := new(MockScheduleCollection)
		winner := scheduleFixture("veh-3")
		schedules.On("FindSchedule", mock.Anything, mock.Anything, "veh-3").Return(nil, db.ErrNotFound).Once()
		schedules.On("FindSchedule", mock.Anything, mock.Anything, "veh-3").Return(&winner, nil).Once()
		catalog.On("FindApplicable", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(oilTemplates(), nil)
		schedules.On("InsertSchedule", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: E11000", db.ErrDuplicateKey))

		s := NewService(catalog, schedules, newMemProfiles(), scopes)
		rec, err := s.GetOrProvisionSchedule(ctx, testTenant, "veh-3", "")
		require.NoError(t, err)
		assert.Equal(t, winner.ID, rec.ID)
		schedules.AssertNumberOfCalls(t, "FindSchedule", 2)
	})

	t.Run("persistence errors propagate unchanged", func(t *testing.T) {
		boom := errors.New("connection reset")
		schedules := new(MockScheduleCollection)
		schedules.On("FindSchedule", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

		s := NewService(new(MockCatalogCollection), schedules, newMemProfiles(), scopes)
		_, err := s.GetOrProvisionSchedule(ctx, testTenant, "veh-4", "")
		assert.Equal(t, boom, err)
	})

	t.Run("invalid input", func(t *testing.T) {
		s := NewService(new(MockCatalogCollection), new(MockScheduleCollection), newMemProfiles(), scopes)
		_, err := s.GetOrProvisionSchedule(ctx, testTenant, "", "")
		assert.True(t, IsInvalidInput(err))
		assert.NotEmpty(t, Hint(err))

		_, err = s.GetOrProvisionSchedule(ctx, "", "veh-1", "")
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("lookups span the tenant scope", func(t *testing.T) {
		groups, err := tenant.ParseScopes("shop-a:shop-b")
		require.NoError(t, err)
		schedules := new(MockScheduleCollection)
		existing := scheduleFixture("veh-5")
		schedules.On("FindSchedule", mock.Anything, []string{"shop-b", "shop-a"}, "veh-5").Return(&existing, nil)

		s := NewService(new(MockCatalogCollection), schedules, newMemProfiles(), tenant.NewStaticResolver(groups))
		_, err = s.GetOrProvisionSchedule(ctx, "shop-b", "veh-5", "")
		require.NoError(t, err)
		schedules.AssertExpectations(t)
	})
}

func TestService_GetOrProvisionSchedule_Concurrent(t *testing.T) {
	catalog := new(MockCatalogCollection)
	catalog.On("FindApplicable", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(oilTemplates(), nil)
	schedules := newMemSchedules()
	s := NewService(catalog, schedules, newMemProfiles(), tenant.NewStaticResolver(nil))

	const callers = 16
	ids := make([]primitive.ObjectID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.GetOrProvisionSchedule(context.Background(), testTenant, "veh-1", "Toyota")
			errs[i] = err
			if rec != nil {
				ids[i] = rec.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, schedules.count())
}

func newMemService(profiles *memProfiles, schedules *memSchedules, opts ...Option) *Service {
	catalog := new(MockCatalogCollection)
	catalog.On("FindApplicable", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(oilTemplates(), nil)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewService(catalog, schedules, profiles, tenant.NewStaticResolver(nil), opts...)
}

func TestService_ProfileView(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions lazily and computes", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(5000))
		schedules := newMemSchedules()
		s := newMemService(newMemProfiles(profile), schedules)

		views, err := s.ProfileView(ctx, testTenant, profile.ID.Hex())
		require.NoError(t, err)
		require.Len(t, views, 2)
		oil := findView(t, views, "OIL")
		assert.Equal(t, models.StatusPending, oil.Status)
		assert.Equal(t, 15000, *oil.NextDueMileage)
		assert.Equal(t, 1, schedules.count())
	})

	t.Run("profile without vehicle has no services", func(t *testing.T) {
		profile := profileFixture("", intPtr(5000))
		s := newMemService(newMemProfiles(profile), newMemSchedules())

		views, err := s.ProfileView(ctx, testTenant, profile.ID.Hex())
		require.NoError(t, err)
		assert.NotNil(t, views)
		assert.Empty(t, views)
	})

	t.Run("unknown profile", func(t *testing.T) {
		s := newMemService(newMemProfiles(), newMemSchedules())
		_, err := s.ProfileView(ctx, testTenant, primitive.NewObjectID().Hex())
		assert.True(t, IsNotFound(err))
		assert.True(t, errors.Is(err, db.ErrNotFound))

		_, err = s.ProfileView(ctx, testTenant, "not-an-id")
		assert.True(t, IsNotFound(err))
	})

	t.Run("foreign tenant cannot see the profile", func(t *testing.T) {
		profile := profileFixture("veh-1", nil)
		s := newMemService(newMemProfiles(profile), newMemSchedules())
		_, err := s.ProfileView(ctx, "shop-z", profile.ID.Hex())
		assert.True(t, IsNotFound(err))
	})

	t.Run("shared schedule isolation", func(t *testing.T) {
		first := profileFixture("veh-1", intPtr(21500), models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: 12000})
		second := profileFixture("veh-1", intPtr(21500), models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: 20000})
		second.Plate = "XYZ789"
		schedules := newMemSchedules()
		s := newMemService(newMemProfiles(first, second), schedules)

		a, err := s.ProfileView(ctx, testTenant, first.ID.Hex())
		require.NoError(t, err)
		b, err := s.ProfileView(ctx, testTenant, second.ID.Hex())
		require.NoError(t, err)

		assert.Equal(t, models.StatusDue, findView(t, a, "OIL").Status)
		assert.Equal(t, models.StatusPending, findView(t, b, "OIL").Status)
		assert.Equal(t, 1, schedules.count())
	})
}

func TestService_UpdateMileage(t *testing.T) {
	ctx := context.Background()

	t.Run("records mileage and recomputes", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(15000), models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: 12000})
		profiles := newMemProfiles(profile)
		publisher := new(MockPublisher)
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
			return e.Kind == notify.EventMileageRecorded && e.TenantID == testTenant &&
				e.VehicleID == "veh-1" && *e.Mileage == 21500 && len(e.Due) == 1 && e.Due[0] == "OIL"
		})).Return(nil)
		s := newMemService(profiles, newMemSchedules(), WithNotifier(publisher))

		views, err := s.UpdateMileage(ctx, testTenant, profile.ID.Hex(), 21500)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDue, findView(t, views, "OIL").Status)

		stored := profiles.get(profile.ID)
		assert.Equal(t, 21500, *stored.Vehicle.Mileage)
		assert.Equal(t, testNow, *stored.Vehicle.MileageUpdatedAt)
		publisher.AssertExpectations(t)
	})

	t.Run("lower reading is a no-op", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(30000))
		profiles := newMemProfiles(profile)
		publisher := new(MockPublisher)
		s := newMemService(profiles, newMemSchedules(), WithNotifier(publisher))

		views, err := s.UpdateMileage(ctx, testTenant, profile.ID.Hex(), 29000)
		require.NoError(t, err)
		assert.Equal(t, 40000, *findView(t, views, "OIL").NextDueMileage)
		assert.Equal(t, 30000, *profiles.get(profile.ID).Vehicle.Mileage)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("first reading on unknown mileage", func(t *testing.T) {
		profile := profileFixture("veh-1", nil)
		profiles := newMemProfiles(profile)
		s := newMemService(profiles, newMemSchedules())

		views, err := s.UpdateMileage(ctx, testTenant, profile.ID.Hex(), 0)
		require.NoError(t, err)
		assert.Equal(t, 10000, *findView(t, views, "OIL").NextDueMileage)
		assert.Equal(t, 0, *profiles.get(profile.ID).Vehicle.Mileage)
	})

	t.Run("negative mileage is rejected before any read", func(t *testing.T) {
		s := newMemService(newMemProfiles(), newMemSchedules())
		_, err := s.UpdateMileage(ctx, testTenant, primitive.NewObjectID().Hex(), -1)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("unknown profile", func(t *testing.T) {
		s := newMemService(newMemProfiles(), newMemSchedules())
		_, err := s.UpdateMileage(ctx, testTenant, primitive.NewObjectID().Hex(), 100)
		assert.True(t, IsNotFound(err))
	})

	t.Run("publisher failure is not surfaced", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(100))
		publisher := new(MockPublisher)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
		s := newMemService(newMemProfiles(profile), newMemSchedules(), WithNotifier(publisher))

		_, err := s.UpdateMileage(ctx, testTenant, profile.ID.Hex(), 200)
		assert.NoError(t, err)
		publisher.AssertExpectations(t)
	})
}

func TestService_CompleteService(t *testing.T) {
	ctx := context.Background()

	t.Run("raises mileage to the performed value", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(14000))
		profiles := newMemProfiles(profile)
		publisher := new(MockPublisher)
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
			return e.Kind == notify.EventServiceCompleted && e.ServiceKey == "OIL" && *e.Mileage == 15000
		})).Return(nil)
		s := newMemService(profiles, newMemSchedules(), WithNotifier(publisher))

		views, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "OIL", PerformedMileage: 15000, SaleID: "sale-1"})
		require.NoError(t, err)
		require.Len(t, views, 2)

		oil := findView(t, views, "OIL")
		assert.Equal(t, models.StatusCompleted, oil.Status)
		assert.Equal(t, 25000, *oil.NextDueMileage)
		assert.Equal(t, testNow, *oil.LastPerformedDate)
		// Every service is recomputed against the raised mileage.
		assert.Equal(t, 35000, *findView(t, views, "AIR").NextDueMileage)

		stored := profiles.get(profile.ID)
		assert.Equal(t, 15000, *stored.Vehicle.Mileage)
		require.NotNil(t, stored.Vehicle.MileageUpdatedAt)
		assert.Equal(t, testNow, *stored.Vehicle.MileageUpdatedAt)
		require.Len(t, stored.ServiceHistory, 1)
		assert.Equal(t, "sale-1", stored.ServiceHistory[0].SaleID)
		publisher.AssertExpectations(t)
	})

	t.Run("keeps mileage when performed below it", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(18000))
		profiles := newMemProfiles(profile)
		s := newMemService(profiles, newMemSchedules())

		performed := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		views, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "OIL", PerformedMileage: 15000, PerformedDate: &performed})
		require.NoError(t, err)

		oil := findView(t, views, "OIL")
		assert.Equal(t, models.StatusPending, oil.Status)
		assert.Equal(t, performed, *oil.LastPerformedDate)
		assert.Equal(t, time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), *oil.NextDueDate)
		assert.Equal(t, 18000, *profiles.get(profile.ID).Vehicle.Mileage)
	})

	t.Run("same mileage with an earlier date is stale", func(t *testing.T) {
		march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		profile := profileFixture("veh-1", intPtr(16000), models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: 15000, LastPerformedDate: march})
		profiles := newMemProfiles(profile)
		publisher := new(MockPublisher)
		s := newMemService(profiles, newMemSchedules(), WithNotifier(publisher))

		february := march.AddDate(0, -1, 0)
		views, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "OIL", PerformedMileage: 15000, PerformedDate: &february})
		require.NoError(t, err)

		oil := findView(t, views, "OIL")
		assert.Equal(t, march, *oil.LastPerformedDate)
		assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *oil.NextDueDate)
		assert.Equal(t, march, profiles.get(profile.ID).ServiceHistory[0].LastPerformedDate)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("mileage timestamp untouched when not raised", func(t *testing.T) {
		readAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		profile := profileFixture("veh-1", intPtr(18000))
		profile.Vehicle.MileageUpdatedAt = &readAt
		profiles := newMemProfiles(profile)
		s := newMemService(profiles, newMemSchedules())

		_, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "OIL", PerformedMileage: 18000})
		require.NoError(t, err)
		assert.Equal(t, readAt, *profiles.get(profile.ID).Vehicle.MileageUpdatedAt)
	})

	t.Run("history never decreases", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(0))
		profiles := newMemProfiles(profile)
		s := newMemService(profiles, newMemSchedules())

		high := 0
		for _, m := range []int{30000, 25000, 30000, 10000, 0, 29999} {
			_, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "OIL", PerformedMileage: m})
			require.NoError(t, err)
			if m > high {
				high = m
			}
			stored := profiles.get(profile.ID)
			require.Len(t, stored.ServiceHistory, 1)
			assert.Equal(t, high, stored.ServiceHistory[0].LastPerformedMileage)
		}
	})

	t.Run("service foreign to the schedule is rejected", func(t *testing.T) {
		profile := profileFixture("veh-1", intPtr(1000))
		profiles := newMemProfiles(profile)
		s := newMemService(profiles, newMemSchedules())

		_, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "FLUX", PerformedMileage: 2000})
		assert.True(t, IsInvalidInput(err))
		assert.Empty(t, profiles.get(profile.ID).ServiceHistory)
		assert.Equal(t, 1000, *profiles.get(profile.ID).Vehicle.Mileage)
	})

	t.Run("invalid input", func(t *testing.T) {
		s := newMemService(newMemProfiles(), newMemSchedules())
		_, err := s.CompleteService(ctx, testTenant, primitive.NewObjectID().Hex(), Completion{PerformedMileage: 1})
		assert.True(t, IsInvalidInput(err))
		_, err = s.CompleteService(ctx, testTenant, primitive.NewObjectID().Hex(), Completion{ServiceKey: "OIL", PerformedMileage: -5})
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("profile without vehicle", func(t *testing.T) {
		profile := profileFixture("", intPtr(1000))
		s := newMemService(newMemProfiles(profile), newMemSchedules())
		_, err := s.CompleteService(ctx, testTenant, profile.ID.Hex(), Completion{ServiceKey: "OIL", PerformedMileage: 2000})
		assert.True(t, IsNotFound(err))
	})
}

func TestService_RefreshSnapshot(t *testing.T) {
	ctx := context.Background()

	profile := profileFixture("veh-1", intPtr(21500), models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: 12000, LastPerformedDate: testNow})
	schedules := newMemSchedules()
	s := newMemService(newMemProfiles(profile), schedules)

	views, err := s.RefreshSnapshot(ctx, testTenant, profile.ID.Hex())
	require.NoError(t, err)
	require.Len(t, views, 2)

	rec, err := schedules.FindSchedule(ctx, []string{testTenant}, "veh-1")
	require.NoError(t, err)
	oil := rec.Services[0]
	assert.Equal(t, "OIL", oil.ServiceKey)
	assert.Equal(t, models.StatusDue, oil.Status)
	assert.Equal(t, 12000, *oil.LastPerformedMileage)
	assert.Equal(t, 22000, *oil.NextDueMileage)

	t.Run("requires a linked vehicle", func(t *testing.T) {
		unlinked := profileFixture("", nil)
		s := newMemService(newMemProfiles(unlinked), newMemSchedules())
		_, err := s.RefreshSnapshot(ctx, testTenant, unlinked.ID.Hex())
		assert.True(t, IsNotFound(err))
	})
}

func TestStaleCompletion(t *testing.T) {
	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	prev := models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: 15000, LastPerformedDate: march}

	tests := []struct {
		name    string
		mileage int
		date    time.Time
		stale   bool
	}{
		{"lower mileage", 14999, march.AddDate(0, 1, 0), true},
		{"higher mileage with earlier date", 15001, march.AddDate(0, -1, 0), false},
		{"same mileage earlier date", 15000, march.AddDate(0, 0, -1), true},
		{"same mileage same date", 15000, march, false},
		{"same mileage later date", 15000, march.AddDate(0, 0, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := models.ServiceHistoryEntry{ServiceKey: "OIL", LastPerformedMileage: tt.mileage, LastPerformedDate: tt.date}
			assert.Equal(t, tt.stale, staleCompletion(next, prev))
		})
	}
}
