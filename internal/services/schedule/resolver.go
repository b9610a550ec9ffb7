package schedule

import "time"

type Holiday struct {
	Start  time.Time
	End    time.Time
	Closed bool
}

type Status int

const (
	Open Status = iota
	ClosedHoliday
	ClosedNoHours
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case ClosedHoliday:
		return "closed_holiday"
	default:
		return "closed_no_hours"
	}
}

// Schedule is the availability definition of one store.
type Schedule struct {
	Location *time.Location
	Weekly   []WeeklyPeriod
	Holidays []Holiday
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// OpenIntervals returns the concrete open intervals within [from, to]. Open
// holidays extend the weekly schedule, closed holidays are cut out of the
// result and take precedence over everything else.
func (s Schedule) OpenIntervals(from, to time.Time) []Interval {
	loc := s.location()
	var opened, closed []Interval
	for _, p := range s.Weekly {
		opened = append(opened, p.occurrences(loc, from, to)...)
	}
	for _, h := range s.Holidays {
		iv := Interval{Start: h.Start, End: h.End}
		if h.Closed {
			closed = append(closed, iv)
		} else {
			opened = append(opened, iv)
		}
	}
	result := Subtract(Merge(opened), Merge(closed))
	return Clip(result, from, to)
}

// Status answers whether the store is open at the given instant. An instant
// is open exactly when it lies in the OpenIntervals projection, so the ends of
// a closed holiday stay open if the surrounding hours are.
func (s Schedule) Status(at time.Time) Status {
	for _, iv := range s.OpenIntervals(at.Add(-time.Minute), at.Add(time.Minute)) {
		if iv.Contains(at) {
			return Open
		}
	}
	for _, h := range s.Holidays {
		if h.Closed && (Interval{Start: h.Start, End: h.End}).Contains(at) {
			return ClosedHoliday
		}
	}
	return ClosedNoHours
}
