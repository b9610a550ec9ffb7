package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// WeeklyPeriod is a recurring opening window. Weekday follows ISO numbering,
// 1 is Monday and 7 is Sunday. Start is the offset from local midnight.
type WeeklyPeriod struct {
	Weekday  int
	Start    time.Duration
	Duration time.Duration
}

func (p WeeklyPeriod) Validate() error {
	if p.Weekday < 1 || p.Weekday > 7 {
		return fmt.Errorf("weekday %d out of range 1-7", p.Weekday)
	}
	if p.Start < 0 || p.Start >= Day {
		return fmt.Errorf("start %s is not a time of day", p.Start)
	}
	if p.Duration <= 0 || p.Duration > Week {
		return fmt.Errorf("duration %s must be positive and at most a week", p.Duration)
	}
	return nil
}

// startOn anchors the period on the given local calendar date.
func (p WeeklyPeriod) startOn(year int, month time.Month, day int, loc *time.Location) time.Time {
	h := int(p.Start / time.Hour)
	m := int((p.Start % time.Hour) / time.Minute)
	s := int((p.Start % time.Minute) / time.Second)
	return time.Date(year, month, day, h, m, s, 0, loc)
}

// occurrences returns every concrete projection of p that touches
// [from, to], both ends inclusive.
func (p WeeklyPeriod) occurrences(loc *time.Location, from, to time.Time) []Interval {
	var out []Interval
	// A period may run for up to a week, so start one week early.
	cursor := from.In(loc).AddDate(0, 0, -7)
	last := to.In(loc)
	for y, m, d := cursor.Date(); ; {
		date := time.Date(y, m, d, 0, 0, 0, 0, loc)
		if date.After(last) {
			break
		}
		if IsoWeekday(date) == p.Weekday {
			start := p.startOn(y, m, d, loc)
			iv := Interval{Start: start, End: start.Add(p.Duration)}
			if !iv.End.Before(from) && !iv.Start.After(to) {
				out = append(out, iv)
			}
		}
		y, m, d = date.AddDate(0, 0, 1).Date()
	}
	return out
}

func IsoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	limits := []int{24, 60, 60}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		d += time.Duration(n) * units[i]
	}
	return d, nil
}

func FormatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// OnDate returns the instant at the given time of day on date's calendar day,
// in date's location.
func OnDate(date time.Time, clock time.Duration) time.Time {
	y, m, d := date.Date()
	return WeeklyPeriod{Start: clock}.startOn(y, m, d, date.Location())
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (iv Interval) Contains(at time.Time) bool {
	return !at.Before(iv.Start) && !at.After(iv.End)
}

func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

// Merge sorts the intervals and combines the ones that touch or overlap.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if !iv.Start.After(cur.End) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes every cut from the base intervals. Both inputs must be
// merged.
func Subtract(base, cuts []Interval) []Interval {
	var out []Interval
	for _, iv := range base {
		pieces := []Interval{iv}
		for _, cut := range cuts {
			var next []Interval
			for _, p := range pieces {
				if !cut.Start.Before(p.End) || !cut.End.After(p.Start) {
					next = append(next, p)
					continue
				}
				if cut.Start.After(p.Start) {
					next = append(next, Interval{Start: p.Start, End: cut.Start})
				}
				if cut.End.Before(p.End) {
					next = append(next, Interval{Start: cut.End, End: p.End})
				}
			}
			pieces = next
		}
		out = append(out, pieces...)
	}
	return out
}

// Clip bounds the intervals to [from, to] and drops what becomes empty.
func Clip(intervals []Interval, from, to time.Time) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if iv.Start.Before(from) {
			iv.Start = from
		}
		if iv.End.After(to) {
			iv.End = to
		}
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	return out
}
