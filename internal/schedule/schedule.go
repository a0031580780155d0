// Package schedule loads facility schedules and computes which slots become
// reservable on the target date.
package schedule

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"slotbot/internal/config"
)

// ErrNoEligibleSlots means nothing is reservable on the target date. It is a
// clean exit, not a failure.
var ErrNoEligibleSlots = errors.New("no eligible slots")

// Schedule is the facility schedule file.
type Schedule struct {
	Facilities []Facility `json:"facilities"`
}

type Facility struct {
	Name string `json:"name"`
	Link string `json:"link"`
	// ActivityButton is the visible label of the activity entry point.
	ActivityButton string  `json:"activity_button"`
	Schedule       []Entry `json:"schedule"`
}

type Entry struct {
	// DayOfWeek is ISO-8601: 1=Monday ... 7=Sunday.
	DayOfWeek    int    `json:"day_of_week"`
	StartingTime string `json:"starting_time"`
	Follow       bool   `json:"follow"`
}

// Load reads and validates a JSON or YAML schedule file.
func Load(path string) (*Schedule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.Error{Path: path, Err: err}
	}
	var s Schedule
	if err := config.DecodeStrict(path, b, &s); err != nil {
		return nil, &config.Error{Path: path, Err: err}
	}
	if err := s.Validate(); err != nil {
		var ce *config.Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	return &s, nil
}

// Validate checks the schedule and normalizes "HH:MM" start times to
// "HH:MM:SS" in place.
func (s *Schedule) Validate() error {
	var issues []string
	seen := make(map[string]struct{}, len(s.Facilities))
	for i := range s.Facilities {
		f := &s.Facilities[i]
		at := fmt.Sprintf("facilities[%d]", i)
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			issues = append(issues, at+".name is required")
		} else {
			at = fmt.Sprintf("facilities[%q]", f.Name)
			if _, dup := seen[f.Name]; dup {
				issues = append(issues, at+": duplicate facility name")
			}
			seen[f.Name] = struct{}{}
		}
		if strings.TrimSpace(f.Link) == "" {
			issues = append(issues, at+".link is required")
		}
		if strings.TrimSpace(f.ActivityButton) == "" {
			issues = append(issues, at+".activity_button is required")
		}
		for j := range f.Schedule {
			e := &f.Schedule[j]
			if e.DayOfWeek < 1 || e.DayOfWeek > 7 {
				issues = append(issues, fmt.Sprintf("%s.schedule[%d].day_of_week %d must be 1..7", at, j, e.DayOfWeek))
			}
			norm, err := normalizeTime(e.StartingTime)
			if err != nil {
				issues = append(issues, fmt.Sprintf("%s.schedule[%d].starting_time %q must be HH:MM:SS", at, j, e.StartingTime))
				continue
			}
			e.StartingTime = norm
		}
	}
	if len(issues) > 0 {
		return &config.Error{Issues: issues}
	}
	return nil
}

func normalizeTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", raw)
}

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayName maps an ISO weekday (1=Monday) to its English name. It returns
// "" outside 1..7.
func WeekdayName(isoDay int) string {
	if isoDay < 1 || isoDay > 7 {
		return ""
	}
	return weekdayNames[isoDay-1]
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}
