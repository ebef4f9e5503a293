package schedule

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/ukydev/service-scheduler/internal/models"
)

// DefaultScanLimit caps how many catalog entries provisioning considers.
const DefaultScanLimit = 100

// SelectTemplates filters the catalog down to the services provisioned for a
// vehicle, ordered common first, then by priority and name. Only the first
// template per service ID is kept.
func SelectTemplates(templates []models.ServiceDefinitionTemplate, brand, vehicleID string, limit int) []models.ServiceDefinitionTemplate {
	selected := lo.Filter(templates, func(t models.ServiceDefinitionTemplate, _ int) bool {
		return t.Schedulable() && t.AppliesTo(brand, vehicleID)
	})
	sort.SliceStable(selected, func(i, j int) bool {
		return catalogLess(&selected[i], &selected[j])
	})
	selected = lo.UniqBy(selected, func(t models.ServiceDefinitionTemplate) string {
		return t.ServiceID
	})
	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

func catalogLess(a, b *models.ServiceDefinitionTemplate) bool {
	if a.Applicability.IsCommon != b.Applicability.IsCommon {
		return a.Applicability.IsCommon
	}
	if a.Applicability.Priority != b.Applicability.Priority {
		return a.Applicability.Priority < b.Applicability.Priority
	}
	return strings.ToLower(a.ServiceName) < strings.ToLower(b.ServiceName)
}

// BuildItems materializes fresh, never-performed schedule items.
func BuildItems(templates []models.ServiceDefinitionTemplate) []models.ServiceScheduleItem {
	return lo.Map(templates, func(t models.ServiceDefinitionTemplate, _ int) models.ServiceScheduleItem {
		return models.ServiceScheduleItem{
			ServiceKey:         t.ServiceID,
			ServiceName:        t.ServiceName,
			System:             t.System,
			MileageInterval:    t.MileageInterval,
			MileageIntervalMax: t.MileageIntervalMax,
			MonthsInterval:     t.MonthsInterval,
			Status:             models.StatusPending,
			Notes:              t.Notes,
		}
	})
}
