package schedule

import (
	"fmt"
	"time"

	"slotbot/pkg/logx"
)

// EligibleSlot is one followed entry that falls on the target date.
type EligibleSlot struct {
	Facility       string
	Link           string
	ActivityButton string
	StartingTime   string
	DayOfWeek      int
	Date           time.Time
}

func (s EligibleSlot) Weekday() string { return WeekdayName(s.DayOfWeek) }

// Label is the accessible label fragment of the site's time control,
// e.g. "09:00:00 Wednesday".
func (s EligibleSlot) Label() string { return s.StartingTime + " " + s.Weekday() }

type FacilityPlan struct {
	Name           string
	Link           string
	ActivityButton string
	Slots          []EligibleSlot
}

// Plan keeps facilities in schedule order and slots in entry order.
type Plan struct {
	TargetDate time.Time
	Weekday    int
	Facilities []FacilityPlan
}

// Slots flattens the plan in processing order.
func (p Plan) Slots() []EligibleSlot {
	var out []EligibleSlot
	for _, f := range p.Facilities {
		out = append(out, f.Slots...)
	}
	return out
}

// TargetDate returns the calendar date lookahead days after today, at
// midnight in today's location.
func TargetDate(today time.Time, lookahead int) time.Time {
	y, m, d := today.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, today.Location()).AddDate(0, 0, lookahead)
}

// Discover returns the followed entries that fall on today+lookahead.
// Facilities without a match are left out. When nothing matches it returns
// the empty plan and an error wrapping ErrNoEligibleSlots.
func Discover(s *Schedule, today time.Time, lookahead int, log logx.Logger) (Plan, error) {
	target := TargetDate(today, lookahead)
	wd := ISOWeekday(target)
	plan := Plan{TargetDate: target, Weekday: wd}

	if s != nil {
		for _, f := range s.Facilities {
			fp := FacilityPlan{Name: f.Name, Link: f.Link, ActivityButton: f.ActivityButton}
			for _, e := range f.Schedule {
				if e.DayOfWeek != wd || !e.Follow {
					continue
				}
				fp.Slots = append(fp.Slots, EligibleSlot{
					Facility:       f.Name,
					Link:           f.Link,
					ActivityButton: f.ActivityButton,
					StartingTime:   e.StartingTime,
					DayOfWeek:      e.DayOfWeek,
					Date:           target,
				})
				log.Info("eligible slot",
					logx.String("facility", f.Name),
					logx.String("date", target.Format(time.DateOnly)),
					logx.String("starting_time", e.StartingTime),
				)
			}
			if len(fp.Slots) > 0 {
				plan.Facilities = append(plan.Facilities, fp)
			}
		}
	}

	if len(plan.Facilities) == 0 {
		return plan, fmt.Errorf("%s (%s): %w", target.Format(time.DateOnly), WeekdayName(wd), ErrNoEligibleSlots)
	}
	return plan, nil
}
