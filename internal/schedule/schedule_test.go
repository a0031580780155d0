package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slotbot/internal/config"
	"slotbot/pkg/logx"
)

// 2026-10-12 is a Monday.
var monday = time.Date(2026, 10, 12, 17, 30, 0, 0, time.UTC)

func TestDiscoverPoolAWednesday(t *testing.T) {
	s := &Schedule{Facilities: []Facility{{
		Name:           "PoolA",
		Link:           "https://example.com/poola",
		ActivityButton: "Lane swim",
		Schedule:       []Entry{{DayOfWeek: 3, StartingTime: "09:00:00", Follow: true}},
	}}}

	plan, err := Discover(s, monday, 2, logx.Nop())
	require.NoError(t, err)
	require.Equal(t, 3, plan.Weekday)
	require.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), plan.TargetDate)

	slots := plan.Slots()
	require.Len(t, slots, 1)
	require.Equal(t, "PoolA", slots[0].Facility)
	require.Equal(t, "09:00:00", slots[0].StartingTime)
	require.Equal(t, "Wednesday", slots[0].Weekday())
	require.Equal(t, "09:00:00 Wednesday", slots[0].Label())
}

func TestDiscoverOnlyFollowedEntriesOnTargetWeekday(t *testing.T) {
	var entries []Entry
	for d := 1; d <= 7; d++ {
		entries = append(entries,
			Entry{DayOfWeek: d, StartingTime: "08:00:00", Follow: true},
			Entry{DayOfWeek: d, StartingTime: "12:00:00", Follow: false},
		)
	}
	s := &Schedule{Facilities: []Facility{{Name: "Gym", Link: "l", ActivityButton: "b", Schedule: entries}}}

	for l := 0; l < 15; l++ {
		for offset := 0; offset < 7; offset++ {
			today := monday.AddDate(0, 0, offset)
			plan, err := Discover(s, today, l, logx.Nop())
			require.NoError(t, err)
			want := ISOWeekday(today.AddDate(0, 0, l))
			for _, slot := range plan.Slots() {
				require.Equal(t, want, slot.DayOfWeek, "today=%s L=%d", today.Weekday(), l)
				require.Equal(t, "08:00:00", slot.StartingTime, "unfollowed entry returned")
			}
			require.Len(t, plan.Slots(), 1)
		}
	}
}

func TestDiscoverKeepsInsertionOrder(t *testing.T) {
	s := &Schedule{Facilities: []Facility{
		{Name: "Zeta", Link: "z", ActivityButton: "b", Schedule: []Entry{
			{DayOfWeek: 3, StartingTime: "19:00:00", Follow: true},
			{DayOfWeek: 3, StartingTime: "07:00:00", Follow: true},
		}},
		{Name: "Skipped", Link: "s", ActivityButton: "b", Schedule: []Entry{
			{DayOfWeek: 4, StartingTime: "07:00:00", Follow: true},
		}},
		{Name: "Alpha", Link: "a", ActivityButton: "b", Schedule: []Entry{
			{DayOfWeek: 3, StartingTime: "10:00:00", Follow: true},
		}},
	}}
	plan, err := Discover(s, monday, 2, logx.Nop())
	require.NoError(t, err)

	var got []string
	for _, slot := range plan.Slots() {
		got = append(got, slot.Facility+"@"+slot.StartingTime)
	}
	require.Equal(t, []string{"Zeta@19:00:00", "Zeta@07:00:00", "Alpha@10:00:00"}, got)
	require.Len(t, plan.Facilities, 2)
}

func TestDiscoverNoEligibleSlots(t *testing.T) {
	tests := []struct {
		name string
		s    *Schedule
	}{
		{"nil schedule", nil},
		{"zero facilities", &Schedule{}},
		{"no matching day", &Schedule{Facilities: []Facility{{Name: "A", Schedule: []Entry{{DayOfWeek: 1, StartingTime: "09:00:00", Follow: true}}}}}},
		{"match not followed", &Schedule{Facilities: []Facility{{Name: "A", Schedule: []Entry{{DayOfWeek: 3, StartingTime: "09:00:00"}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Discover(tt.s, monday, 2, logx.Nop())
			require.ErrorIs(t, err, ErrNoEligibleSlots)
		})
	}
}

func TestWeekdayNameISO(t *testing.T) {
	want := []string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday", ""}
	for d, name := range want {
		if got := WeekdayName(d); got != name {
			t.Fatalf("WeekdayName(%d) = %q, want %q", d, got, name)
		}
	}
	// consistent with ISOWeekday for every day of a week
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		if got := WeekdayName(ISOWeekday(day)); got != day.Weekday().String() {
			t.Fatalf("WeekdayName(ISOWeekday(%s)) = %q", day.Weekday(), got)
		}
	}
}

func TestLoadYAMLNormalizesTimes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "schedule.yaml")
	body := `
facilities:
  - name: PoolA
    link: https://example.com/poola
    activity_button: Lane swim
    schedule:
      - day_of_week: 3
        starting_time: "9:00"
        follow: true
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	s, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "09:00:00", s.Facilities[0].Schedule[0].StartingTime)
}

func TestLoadRejectsInvalidSchedule(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"facilities": [`},
		{"unknown key", `{"facilities": [], "extra": 1}`},
		{"bad weekday", `{"facilities":[{"name":"A","link":"l","activity_button":"b","schedule":[{"day_of_week":0,"starting_time":"09:00:00","follow":true}]}]}`},
		{"bad time", `{"facilities":[{"name":"A","link":"l","activity_button":"b","schedule":[{"day_of_week":1,"starting_time":"nine","follow":true}]}]}`},
		{"missing link", `{"facilities":[{"name":"A","activity_button":"b","schedule":[]}]}`},
		{"duplicate name", `{"facilities":[{"name":"A","link":"l","activity_button":"b"},{"name":"A","link":"l","activity_button":"b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "schedule.json")
			require.NoError(t, os.WriteFile(p, []byte(tt.body), 0o600))
			_, err := Load(p)
			var ce *config.Error
			require.True(t, errors.As(err, &ce), "want *config.Error, got %v", err)
			require.Equal(t, p, ce.Path)
		})
	}
}
