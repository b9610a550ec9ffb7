package availability

import (
	"time"

	"lunchbreak/internal/errs"
	"lunchbreak/internal/services/schedule"
)

// Rules is what the gate needs to know about a store.
type Rules struct {
	Schedule schedule.Schedule
	Wait     time.Duration
}

// IsOpen decides whether the store accepts fulfilment at instant. The lead
// time check is skipped for group orders, whose instant is fixed by the group.
func IsOpen(rules Rules, instant, now time.Time, ignoreLeadTime bool) error {
	if instant.Before(now) {
		return errs.PastOrderDenied
	}
	if !ignoreLeadTime && instant.Sub(now) < rules.Wait {
		return errs.LeadTimeNotMet.Withf("store requires %s between placement and receipt", rules.Wait)
	}

	switch rules.Schedule.Status(instant) {
	case schedule.ClosedHoliday:
		return errs.StoreClosed.Withf("store is closed for holiday at %s", instant.Format(time.RFC3339))
	case schedule.ClosedNoHours:
		return errs.StoreClosed.Withf("store has no opening hours at %s", instant.Format(time.RFC3339))
	}
	return nil
}

// Preorder holds advance-notice settings. A nil Days disables the
// requirement.
type Preorder struct {
	Disabled bool
	Days     *int
	Cutoff   *time.Duration
}

// Resolve fills unset food settings from its food type.
func Resolve(food, foodType Preorder) Preorder {
	if food.Disabled {
		return Preorder{Disabled: true}
	}
	out := food
	if out.Days == nil {
		out.Days = foodType.Days
	}
	if out.Cutoff == nil {
		out.Cutoff = foodType.Cutoff
	}
	return out
}

// IsOrderable checks an item's own preorder requirement. Both instants are
// compared as wall clock times in fulfil's location.
func IsOrderable(p Preorder, fulfil, now time.Time) bool {
	if p.Disabled || p.Days == nil || p.Cutoff == nil {
		return true
	}
	now = now.In(fulfil.Location())

	required := *p.Days
	if schedule.ClockOf(now) > *p.Cutoff {
		required++
	}

	return dayDifference(fulfil, now) >= required
}

func dayDifference(fulfil, now time.Time) int {
	diff := fulfil.Sub(now)
	days := int(diff / schedule.Day)
	if diff < 0 && diff%schedule.Day != 0 {
		days--
	}

	fy, fm, fd := fulfil.Date()
	ny, nm, nd := now.Date()
	sameDay := fy == ny && fm == nm && fd == nd
	if schedule.ClockOf(fulfil) < schedule.ClockOf(now) && !sameDay {
		days++
	}
	return days
}
