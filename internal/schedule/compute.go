package schedule

import (
	"time"

	"github.com/ukydev/service-scheduler/internal/models"
)

// EarlyWarningRatio is the share of the mileage interval before the due
// point during which a service reports due instead of pending.
const EarlyWarningRatio = 0.10

// ComputeView merges a vehicle's provisioned services with one profile's
// odometer reading and completion history. It performs no I/O and is
// index-aligned with items. A nil currentMileage means no reading is known.
//
// Mileage decides status; the calendar due date is informational.
func ComputeView(items []models.ServiceScheduleItem, currentMileage *int, history []models.ServiceHistoryEntry, now time.Time) []models.ServiceView {
	byKey := IndexHistory(history)
	views := make([]models.ServiceView, len(items))
	for i, item := range items {
		var entry *models.ServiceHistoryEntry
		if h, ok := byKey[item.ServiceKey]; ok {
			entry = &h
		}
		views[i] = computeItem(item, currentMileage, entry, now)
	}
	return views
}

// IndexHistory keys history by service. Duplicate keys resolve to the most
// recent entry: latest date first, then highest mileage.
func IndexHistory(history []models.ServiceHistoryEntry) map[string]models.ServiceHistoryEntry {
	byKey := make(map[string]models.ServiceHistoryEntry, len(history))
	for _, h := range history {
		if cur, ok := byKey[h.ServiceKey]; !ok || moreRecent(h, cur) {
			byKey[h.ServiceKey] = h
		}
	}
	return byKey
}

func moreRecent(a, b models.ServiceHistoryEntry) bool {
	if !a.LastPerformedDate.Equal(b.LastPerformedDate) {
		return a.LastPerformedDate.After(b.LastPerformedDate)
	}
	return a.LastPerformedMileage >= b.LastPerformedMileage
}

func computeItem(item models.ServiceScheduleItem, currentMileage *int, entry *models.ServiceHistoryEntry, now time.Time) models.ServiceView {
	view := models.ServiceView{
		ServiceKey:           item.ServiceKey,
		ServiceName:          item.ServiceName,
		System:               item.System,
		MileageInterval:      item.MileageInterval,
		MileageIntervalMax:   item.MileageIntervalMax,
		MonthsInterval:       item.MonthsInterval,
		LastPerformedMileage: item.LastPerformedMileage,
		LastPerformedDate:    item.LastPerformedDate,
		Status:               models.StatusPending,
		Notes:                item.Notes,
	}
	if entry != nil {
		m := entry.LastPerformedMileage
		view.LastPerformedMileage = &m
		if !entry.LastPerformedDate.IsZero() {
			d := entry.LastPerformedDate
			view.LastPerformedDate = &d
		}
	}

	interval := item.Interval()

	if interval.HasCalendar() {
		base := now
		if view.LastPerformedDate != nil {
			base = *view.LastPerformedDate
		}
		due := AddMonths(base, interval.Months)
		view.NextDueDate = &due
	}

	if !interval.HasMileage() {
		return view
	}

	var next int
	switch {
	case view.LastPerformedMileage != nil:
		next = *view.LastPerformedMileage + interval.Mileage
	case currentMileage != nil:
		// Never performed: project one interval from today's reading.
		next = *currentMileage + interval.Mileage
	default:
		return view
	}
	view.NextDueMileage = &next

	if currentMileage == nil {
		return view
	}
	remaining := next - *currentMileage
	view.MileageRemaining = &remaining
	view.Status = mileageStatus(*currentMileage, next, interval.Mileage)

	if view.Status == models.StatusPending && entry != nil && *currentMileage <= entry.LastPerformedMileage {
		view.Status = models.StatusCompleted
	}
	return view
}

func mileageStatus(current, nextDue, interval int) models.ServiceStatus {
	switch {
	case current >= nextDue:
		return models.StatusOverdue
	case float64(current) >= float64(nextDue)-EarlyWarningRatio*float64(interval):
		return models.StatusDue
	default:
		return models.StatusPending
	}
}

// AddMonths adds calendar months, clamping to the last day of the target
// month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
