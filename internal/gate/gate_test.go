package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotbot/internal/clock"
	"slotbot/pkg/logx"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "18:00:00", want: TimeOfDay{18, 0, 0}},
		{in: " 07:05:09 ", want: TimeOfDay{7, 5, 9}},
		{in: "18:00", wantErr: true},
		{in: "25:00:00", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseTimeOfDay(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestWaitReturnsImmediatelyWhenPast(t *testing.T) {
	for _, now := range []time.Time{
		time.Date(2026, 10, 12, 18, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 12, 23, 59, 59, 0, time.UTC),
	} {
		fc := clock.NewFake(now)
		g := Gate{Target: TimeOfDay{18, 0, 0}, Location: time.UTC, Clock: fc, Log: logx.Nop()}
		if err := g.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if n := len(fc.Sleeps()); n != 0 {
			t.Fatalf("slept %d times at %s, want 0", n, now.Format(time.TimeOnly))
		}
	}
}

func TestWaitPollsUntilTarget(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 10, 12, 17, 59, 50, 0, time.UTC))
	g := Gate{Target: TimeOfDay{18, 0, 0}, Location: time.UTC, Interval: 3 * time.Second, Clock: fc}
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// 17:59:53, :56, :59, 18:00:02
	if n := len(fc.Sleeps()); n != 4 {
		t.Fatalf("slept %d times, want 4", n)
	}
	for _, d := range fc.Sleeps() {
		if d != 3*time.Second {
			t.Fatalf("poll interval %v, want 3s", d)
		}
	}
}

func TestWaitDefaultInterval(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 10, 12, 17, 59, 59, 0, time.UTC))
	g := Gate{Target: TimeOfDay{18, 0, 0}, Location: time.UTC, Clock: fc}
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s := fc.Sleeps(); len(s) != 1 || s[0] != DefaultInterval {
		t.Fatalf("Sleeps = %v, want [%v]", s, DefaultInterval)
	}
}

func TestWaitHonorsLocation(t *testing.T) {
	loc := time.FixedZone("EDT", -4*3600)
	// 21:59:59 UTC is 17:59:59 EDT
	fc := clock.NewFake(time.Date(2026, 10, 12, 21, 59, 59, 0, time.UTC))
	g := Gate{Target: TimeOfDay{18, 0, 0}, Location: loc, Clock: fc}
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := len(fc.Sleeps()); n != 1 {
		t.Fatalf("slept %d times, want 1", n)
	}
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := clock.NewFake(time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC))
	g := Gate{Target: TimeOfDay{18, 0, 0}, Location: time.UTC, Clock: fc}
	if err := g.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait err = %v, want context.Canceled", err)
	}
}
