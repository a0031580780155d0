// Package app wires configuration into one reservation pass (Runner) and
// the cron-driven long-running mode (Daemon).
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotbot/internal/browser"
	"slotbot/internal/clock"
	"slotbot/internal/config"
	"slotbot/internal/notify"
	"slotbot/internal/reservation"
	"slotbot/internal/schedule"
	"slotbot/pkg/logx"
)

// Report is the result of one slot.
type Report struct {
	Slot     schedule.EligibleSlot
	Outcome  reservation.Outcome
	Duration time.Duration
}

type RunSummary struct {
	RunID      string
	TargetDate time.Time
	Reports    []Report
	Counts     map[reservation.Kind]int
}

func (s *RunSummary) add(r Report) {
	s.Reports = append(s.Reports, r)
	s.Counts[r.Outcome.Kind]++
}

// Runner performs one pass: discover, wait for the gate, then reserve every
// eligible slot in order on a single browser session.
type Runner struct {
	Config     *config.Config
	NewBrowser BrowserFactory
	Codes      reservation.CodeWaiter
	Notifier   notify.Notifier
	Input      browser.InputStrategy
	Clock      clock.Clock
	Jitter     *clock.Jitter
	Log        logx.Logger

	// NoWait skips the gate even when reservation.wait_for_target is set.
	NoWait bool
	// Today replaces the clock's date for discovery.
	Today time.Time
}

// NewRunner builds a production runner: Chrome, IMAP and Telegram (or a
// log-only notifier).
func NewRunner(cfg *config.Config, log logx.Logger) (*Runner, error) {
	c := clock.Real{}
	j := clock.NewJitter(time.Now().UnixNano())

	newBrowser, err := ChromeFactory(cfg, log.With(logx.String("comp", "browser")))
	if err != nil {
		return nil, err
	}
	retriever, err := NewRetriever(cfg, log)
	if err != nil {
		return nil, err
	}
	poller, err := newPoller(cfg, retriever, c, log)
	if err != nil {
		return nil, err
	}
	notifier, err := NewNotifier(cfg, log)
	if err != nil {
		return nil, err
	}
	input, err := mapInputStrategy(cfg, c, j)
	if err != nil {
		return nil, err
	}
	return &Runner{
		Config:     cfg,
		NewBrowser: newBrowser,
		Codes:      poller,
		Notifier:   notifier,
		Input:      input,
		Clock:      c,
		Jitter:     j,
		Log:        log,
	}, nil
}

func (r *Runner) clock() clock.Clock {
	if r.Clock == nil {
		return clock.Real{}
	}
	return r.Clock
}

// Plan loads the schedule and runs discovery for the configured (or
// overridden) date. It does not touch the browser.
func (r *Runner) Plan(log logx.Logger) (schedule.Plan, error) {
	cfg := r.Config
	loc, err := config.LoadLocation(cfg.Reservation.Timezone)
	if err != nil {
		return schedule.Plan{}, &config.Error{Issues: []string{"reservation.timezone: " + err.Error()}, Err: err}
	}
	today := r.Today
	if today.IsZero() {
		today = r.clock().Now()
	}
	sched, err := schedule.Load(cfg.ScheduleFile)
	if err != nil {
		return schedule.Plan{}, err
	}
	return schedule.Discover(sched, today.In(loc), cfg.Reservation.Lookahead(), log)
}

// Run returns an error wrapping schedule.ErrNoEligibleSlots when there is
// nothing to do, and ctx.Err() when cancelled. Per-slot problems are folded
// into the summary and never returned.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	cfg := r.Config
	sum := RunSummary{RunID: uuid.NewString(), Counts: map[reservation.Kind]int{}}
	log := r.Log.With(logx.String("run_id", sum.RunID))
	c := r.clock()

	plan, err := r.Plan(log)
	sum.TargetDate = plan.TargetDate
	if err != nil {
		if errors.Is(err, schedule.ErrNoEligibleSlots) {
			log.Info("nothing to reserve", logx.String("target_date", plan.TargetDate.Format(time.DateOnly)))
		}
		return sum, err
	}
	slots := plan.Slots()
	log.Info("run started",
		logx.String("target_date", plan.TargetDate.Format(time.DateOnly)),
		logx.String("weekday", schedule.WeekdayName(plan.Weekday)),
		logx.Int("slots", len(slots)),
	)

	if cfg.Reservation.WaitForTarget && !r.NoWait {
		loc, _ := config.LoadLocation(cfg.Reservation.Timezone)
		g, err := mapGate(cfg, loc, c, log)
		if err != nil {
			return sum, err
		}
		if err := g.Wait(ctx); err != nil {
			return sum, err
		}
	}

	b, err := r.NewBrowser(ctx)
	if err != nil {
		return sum, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("browser close failed", logx.Err(err))
		}
	}()

	backoffMin, backoffMax, err := retryBackoff(cfg)
	if err != nil {
		return sum, err
	}
	m := &reservation.Machine{
		Browser: b,
		Input:   r.Input,
		Codes:   r.Codes,
		Contact: reservation.Contact{
			Name:  cfg.Contact.Name,
			Phone: cfg.Contact.PhoneNumber,
			Email: cfg.Contact.Email,
		},
		GroupSize:  cfg.Reservation.GroupSize,
		MaxRetries: cfg.Reservation.MaxRetries,
		BackoffMin: backoffMin,
		BackoffMax: backoffMax,
		Clock:      c,
		Jitter:     r.Jitter,
		Log:        log.With(logx.String("comp", "reservation")),
	}
	rep := &reservation.Reporter{
		Browser:    b,
		Notifier:   r.Notifier,
		MaxRetries: cfg.Reservation.MaxRetries,
		Log:        log.With(logx.String("comp", "report")),
	}

	for i, slot := range slots {
		if ctx.Err() != nil {
			log.Warn("run interrupted", logx.Int("skipped", len(slots)-i))
			break
		}
		start := c.Now()
		out := m.Reserve(ctx, slot)
		rep.Report(ctx, slot, out)
		sum.add(Report{Slot: slot, Outcome: out, Duration: c.Now().Sub(start)})
	}

	fields := []logx.Field{logx.Int("slots", len(sum.Reports))}
	for _, k := range reservation.Kinds() {
		fields = append(fields, logx.Int(k.String(), sum.Counts[k]))
	}
	log.Info("run finished", fields...)
	return sum, ctx.Err()
}

func retryBackoff(cfg *config.Config) (time.Duration, time.Duration, error) {
	lo, err := config.ParseDurationOrDefault("reservation.retry_backoff_min", cfg.Reservation.RetryBackoffMin, time.Second)
	if err != nil {
		return 0, 0, err
	}
	hi, err := config.ParseDurationOrDefault("reservation.retry_backoff_max", cfg.Reservation.RetryBackoffMax, 3*time.Second)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi, nil
}
