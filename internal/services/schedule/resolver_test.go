package schedule

import (
	"testing"
	"time"
)

// 2024-01-01 is a Monday.
func at(day, hour, min int) time.Time {
	return time.Date(2024, 1, day, hour, min, 0, 0, time.UTC)
}

func mustClock(t *testing.T, s string) time.Duration {
	t.Helper()
	d, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return d
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*time.Hour + 30*time.Minute, false},
		{"23:59:59", 23*time.Hour + 59*time.Minute + 59*time.Second, false},
		{"24:00", 0, true},
		{"12", 0, true},
		{"ab:cd", 0, true},
		{"12:60", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if FormatClock(9*time.Hour+5*time.Minute) != "09:05" {
		t.Errorf("FormatClock = %q", FormatClock(9*time.Hour+5*time.Minute))
	}
}

func TestWeeklyPeriodValidate(t *testing.T) {
	tests := []struct {
		p     WeeklyPeriod
		valid bool
	}{
		{WeeklyPeriod{Weekday: 1, Start: 9 * time.Hour, Duration: 8 * time.Hour}, true},
		{WeeklyPeriod{Weekday: 7, Start: 22 * time.Hour, Duration: 4 * time.Hour}, true},
		{WeeklyPeriod{Weekday: 0, Start: 9 * time.Hour, Duration: time.Hour}, false},
		{WeeklyPeriod{Weekday: 8, Start: 9 * time.Hour, Duration: time.Hour}, false},
		{WeeklyPeriod{Weekday: 1, Start: 9 * time.Hour, Duration: 0}, false},
		{WeeklyPeriod{Weekday: 1, Start: 25 * time.Hour, Duration: time.Hour}, false},
	}
	for _, tt := range tests {
		if err := tt.p.Validate(); (err == nil) != tt.valid {
			t.Errorf("Validate(%+v) = %v, want valid=%v", tt.p, err, tt.valid)
		}
	}
}

func TestStatusWeekly(t *testing.T) {
	s := Schedule{Weekly: []WeeklyPeriod{
		{Weekday: 1, Start: mustClock(t, "09:00"), Duration: 8 * time.Hour},
		{Weekday: 7, Start: mustClock(t, "22:00"), Duration: 4 * time.Hour},
	}}

	tests := []struct {
		name string
		at   time.Time
		want Status
	}{
		{"inside", at(1, 10, 0), Open},
		{"start inclusive", at(1, 9, 0), Open},
		{"end inclusive", at(1, 17, 0), Open},
		{"after close", at(1, 17, 1), ClosedNoHours},
		{"before open", at(1, 8, 59), ClosedNoHours},
		{"other weekday", at(2, 10, 0), ClosedNoHours},
		{"next week", at(8, 12, 0), Open},
		{"crosses midnight into monday", at(1, 1, 30), Open},
		{"after sunday night period", at(1, 2, 30), ClosedNoHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Status(tt.at); got != tt.want {
				t.Errorf("Status(%s) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestStatusHolidays(t *testing.T) {
	s := Schedule{
		Weekly: []WeeklyPeriod{{Weekday: 1, Start: 9 * time.Hour, Duration: 8 * time.Hour}},
		Holidays: []Holiday{
			{Start: at(1, 11, 0), End: at(1, 12, 0), Closed: true},
			{Start: at(2, 10, 0), End: at(2, 12, 0), Closed: false},
			{Start: at(3, 10, 0), End: at(3, 14, 0), Closed: false},
			{Start: at(3, 12, 0), End: at(3, 13, 0), Closed: true},
		},
	}

	tests := []struct {
		name string
		at   time.Time
		want Status
	}{
		{"closed holiday inside weekly period", at(1, 11, 30), ClosedHoliday},
		{"weekly period outside holiday", at(1, 13, 0), Open},
		{"open holiday outside weekly period", at(2, 11, 0), Open},
		{"after open holiday", at(2, 12, 1), ClosedNoHours},
		{"closed overrides overlapping open", at(3, 12, 30), ClosedHoliday},
		{"open holiday around closed one", at(3, 11, 0), Open},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Status(tt.at); got != tt.want {
				t.Errorf("Status(%s) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestStatusAgreesWithOpenIntervals(t *testing.T) {
	s := Schedule{
		Weekly: []WeeklyPeriod{{Weekday: 1, Start: 9 * time.Hour, Duration: 8 * time.Hour}},
		Holidays: []Holiday{
			{Start: at(1, 11, 0), End: at(1, 12, 0), Closed: true},
			{Start: at(2, 10, 0), End: at(2, 12, 0)},
			{Start: at(3, 10, 0), End: at(3, 12, 0), Closed: true},
		},
	}
	open := s.OpenIntervals(at(1, 0, 0), at(4, 0, 0))

	tests := []struct {
		name string
		at   time.Time
		want Status
	}{
		{"closed holiday start", at(1, 11, 0), Open},
		{"closed holiday interior", at(1, 11, 0).Add(time.Second), ClosedHoliday},
		{"closed holiday end", at(1, 12, 0), Open},
		{"open holiday start", at(2, 10, 0), Open},
		{"open holiday end", at(2, 12, 0), Open},
		{"weekly period end", at(1, 17, 0), Open},
		{"closed holiday without hours", at(3, 10, 0), ClosedHoliday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Status(tt.at)
			if got != tt.want {
				t.Errorf("Status(%s) = %s, want %s", tt.at, got, tt.want)
			}
			projected := false
			for _, iv := range open {
				projected = projected || iv.Contains(tt.at)
			}
			if projected != (got == Open) {
				t.Errorf("Status(%s) = %s but OpenIntervals membership = %v", tt.at, got, projected)
			}
		})
	}
}

func TestOpenIntervalsMergesWeeklyPeriods(t *testing.T) {
	s := Schedule{Weekly: []WeeklyPeriod{
		{Weekday: 1, Start: 9 * time.Hour, Duration: 3 * time.Hour},
		{Weekday: 1, Start: 12 * time.Hour, Duration: 2 * time.Hour},
		{Weekday: 1, Start: 10 * time.Hour, Duration: time.Hour},
		{Weekday: 1, Start: 18 * time.Hour, Duration: time.Hour},
	}}

	got := s.OpenIntervals(at(1, 0, 0), at(2, 0, 0))
	want := []Interval{
		{Start: at(1, 9, 0), End: at(1, 14, 0)},
		{Start: at(1, 18, 0), End: at(1, 19, 0)},
	}
	assertIntervals(t, got, want)
}

func TestOpenIntervalsWithHolidays(t *testing.T) {
	s := Schedule{
		Weekly: []WeeklyPeriod{{Weekday: 1, Start: 9 * time.Hour, Duration: 8 * time.Hour}},
		Holidays: []Holiday{
			{Start: at(1, 11, 0), End: at(1, 12, 0), Closed: true},
			{Start: at(2, 10, 0), End: at(2, 12, 0)},
		},
	}

	got := s.OpenIntervals(at(1, 0, 0), at(3, 0, 0))
	want := []Interval{
		{Start: at(1, 9, 0), End: at(1, 11, 0)},
		{Start: at(1, 12, 0), End: at(1, 17, 0)},
		{Start: at(2, 10, 0), End: at(2, 12, 0)},
	}
	assertIntervals(t, got, want)
}

func TestOpenIntervalsClipsToWindow(t *testing.T) {
	s := Schedule{Weekly: []WeeklyPeriod{{Weekday: 7, Start: 22 * time.Hour, Duration: 4 * time.Hour}}}

	got := s.OpenIntervals(at(1, 0, 0), at(1, 12, 0))
	want := []Interval{{Start: at(1, 0, 0), End: at(1, 2, 0)}}
	assertIntervals(t, got, want)
}

func TestStatusUsesStoreLocation(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	s := Schedule{
		Location: cet,
		Weekly:   []WeeklyPeriod{{Weekday: 1, Start: 9 * time.Hour, Duration: time.Hour}},
	}

	if got := s.Status(at(1, 8, 30)); got != Open {
		t.Errorf("08:30 UTC is 09:30 CET, got %s", got)
	}
	if got := s.Status(at(1, 9, 30)); got != ClosedNoHours {
		t.Errorf("09:30 UTC is 10:30 CET, got %s", got)
	}
}

func assertIntervals(t *testing.T, got, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d intervals %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("interval %d = [%s, %s], want [%s, %s]", i, got[i].Start, got[i].End, want[i].Start, want[i].End)
		}
	}
}
