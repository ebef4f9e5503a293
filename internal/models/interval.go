package models

// IntervalKind tags which recurrence components a service has.
type IntervalKind int

const (
	IntervalNone IntervalKind = iota
	IntervalMileage
	IntervalCalendar
	IntervalMileageAndCalendar
)

func (k IntervalKind) String() string {
	switch k {
	case IntervalMileage:
		return "mileage"
	case IntervalCalendar:
		return "calendar"
	case IntervalMileageAndCalendar:
		return "mileage_and_calendar"
	default:
		return "none"
	}
}

// Interval is the recurrence cadence of a service. Mileage and Months are
// only meaningful when Kind includes the matching component.
type Interval struct {
	Kind    IntervalKind
	Mileage int
	Months  int
}

// NewInterval classifies raw interval fields; non-positive values mean the
// component is absent.
func NewInterval(mileage, months int) Interval {
	switch {
	case mileage > 0 && months > 0:
		return Interval{Kind: IntervalMileageAndCalendar, Mileage: mileage, Months: months}
	case mileage > 0:
		return Interval{Kind: IntervalMileage, Mileage: mileage}
	case months > 0:
		return Interval{Kind: IntervalCalendar, Months: months}
	default:
		return Interval{Kind: IntervalNone}
	}
}

func (i Interval) HasMileage() bool {
	return i.Kind == IntervalMileage || i.Kind == IntervalMileageAndCalendar
}

func (i Interval) HasCalendar() bool {
	return i.Kind == IntervalCalendar || i.Kind == IntervalMileageAndCalendar
}
