// Package gate blocks until a wall-clock time of day.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slotbot/internal/clock"
	"slotbot/pkg/logx"
)

const DefaultInterval = 3 * time.Second

// TimeOfDay is a wall-clock time with no date.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay parses "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04:05", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time of day %q: want HH:MM:SS", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) seconds() int { return t.Hour*3600 + t.Minute*60 + t.Second }

// Reached reports whether now's time of day, in loc, is >= t.
func (t TimeOfDay) Reached(now time.Time, loc *time.Location) bool {
	if loc != nil {
		now = now.In(loc)
	}
	cur := now.Hour()*3600 + now.Minute()*60 + now.Second()
	return cur >= t.seconds()
}

// On returns t on now's calendar day in loc.
func (t TimeOfDay) On(now time.Time, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, now.Location())
}

// Gate polls the clock instead of sleeping once, so clock adjustments
// during the wait are picked up.
type Gate struct {
	Target   TimeOfDay
	Location *time.Location
	Interval time.Duration
	Clock    clock.Clock
	Log      logx.Logger
}

// Wait returns nil once the target is reached, or ctx.Err() if cancelled.
func (g Gate) Wait(ctx context.Context) error {
	c := g.Clock
	if c == nil {
		c = clock.Real{}
	}
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	now := c.Now()
	if g.Target.Reached(now, g.Location) {
		return nil
	}
	g.Log.Info("waiting for target time",
		logx.String("target", g.Target.String()),
		logx.Duration("remaining", g.Target.On(now, g.Location).Sub(now)),
	)
	for {
		if err := c.Sleep(ctx, interval); err != nil {
			return err
		}
		now = c.Now()
		if g.Target.Reached(now, g.Location) {
			g.Log.Info("target time reached", logx.String("target", g.Target.String()))
			return nil
		}
		g.Log.Debug("still waiting",
			logx.String("now", now.Format(time.TimeOnly)),
			logx.Duration("remaining", g.Target.On(now, g.Location).Sub(now)),
		)
	}
}
