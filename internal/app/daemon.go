package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"slotbot/internal/config"
	"slotbot/internal/runtime/supervisor"
	"slotbot/internal/schedule"
	"slotbot/pkg/logx"
)

// Pass is one reservation pass. *Runner satisfies it.
type Pass interface {
	Run(ctx context.Context) (RunSummary, error)
}

// Daemon triggers a pass on a cron schedule and follows config edits.
type Daemon struct {
	Manager *config.Manager
	// Logs receives logging config changes on reload. Optional.
	Logs *logx.Service
	Log  logx.Logger

	// NewPass builds the pass for the config current at trigger time.
	// Defaults to NewRunner.
	NewPass func(cfg *config.Config, log logx.Logger) (Pass, error)
	// Notify reports service state to systemd. Defaults to sd_notify.
	Notify func(state string)
	// Watch follows the config file. Defaults to Manager.Watch.
	Watch func(ctx context.Context) error

	mu   sync.Mutex
	cron *cron.Cron
	spec string
	loc  *time.Location

	running atomic.Bool
	sup     *supervisor.Supervisor
}

// Run blocks until ctx is cancelled. A pass in flight at shutdown gets a
// cancelled context and up to 30s to report its current slot.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Manager.Get()
	if cfg == nil {
		return errors.New("daemon: config not loaded")
	}
	if strings.TrimSpace(cfg.Daemon.Cron) == "" {
		return &config.Error{Path: d.Manager.Path(), Issues: []string{"daemon.cron is required for daemon mode"}}
	}

	d.sup = supervisor.New(ctx, supervisor.WithLogger(d.Log), supervisor.WithCancelOnError(true))
	if err := d.reschedule(cfg); err != nil {
		return err
	}

	if cfg.Daemon.WatchConfig {
		d.Manager.SetLogger(d.Log.With(logx.String("comp", "config")))
		sub := d.Manager.Subscribe(8)
		d.sup.Go0("config.reload", func(c context.Context) {
			defer d.Manager.Unsubscribe(sub)
			d.reloadLoop(c, cfg, sub)
		})
		d.sup.GoRestart("config.watch", watchRestartMin, watchRestartMax, d.watch)
	}

	d.notify(daemon.SdNotifyReady)
	d.Log.Info("daemon started", logx.String("cron", d.spec), logx.String("tz", d.loc.String()), logx.Time("next", d.Next()))

	<-d.sup.Context().Done()
	d.notify(daemon.SdNotifyStopping)
	d.Log.Info("daemon stopping")

	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-stopCtx.Done():
			d.Log.Warn("pass still running at shutdown deadline")
		}
	}
	if err := d.sup.Wait(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	d.Log.Info("daemon stopped")
	return nil
}

const (
	watchRestartMin = 250 * time.Millisecond
	watchRestartMax = 30 * time.Second
)

// watch runs the config watcher. Any return before shutdown is an error so
// the supervisor restarts it; a broken watcher never stops the daemon.
func (d *Daemon) watch(ctx context.Context) error {
	fn := d.Watch
	if fn == nil {
		fn = d.Manager.Watch
	}
	if err := fn(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("config watcher exited unexpectedly")
}

func (d *Daemon) notify(state string) {
	if d.Notify != nil {
		d.Notify(state)
		return
	}
	if ok, err := daemon.SdNotify(false, state); err != nil {
		d.Log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		d.Log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// Next is the next scheduled trigger, or the zero time when not scheduled.
func (d *Daemon) Next() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron == nil {
		return time.Time{}
	}
	entries := d.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	next := entries[0].Next
	if next.IsZero() {
		// not started yet; compute from the schedule
		next = entries[0].Schedule.Next(time.Now().In(d.loc))
	}
	return next
}

// reschedule replaces the cron instance. A pass already running is left to
// finish.
func (d *Daemon) reschedule(cfg *config.Config) error {
	spec := strings.TrimSpace(cfg.Daemon.Cron)
	loc, err := config.LoadLocation(cfg.Daemon.Timezone)
	if err != nil {
		return &config.Error{Issues: []string{"daemon.timezone: " + err.Error()}, Err: err}
	}
	c := cron.New(cron.WithParser(config.CronParser()), cron.WithLocation(loc))
	ctx := d.sup.Context()
	if _, err := c.AddFunc(spec, func() { d.trigger(ctx) }); err != nil {
		return &config.Error{Issues: []string{"daemon.cron " + spec + ": " + err.Error()}, Err: err}
	}

	d.mu.Lock()
	old := d.cron
	d.cron, d.spec, d.loc = c, spec, loc
	d.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	c.Start()
	return nil
}

// trigger runs one pass unless another is still in flight.
func (d *Daemon) trigger(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		d.Log.Warn("previous pass still running; trigger skipped")
		return
	}
	defer d.running.Store(false)

	newPass := d.NewPass
	if newPass == nil {
		newPass = func(cfg *config.Config, log logx.Logger) (Pass, error) { return NewRunner(cfg, log) }
	}
	p, err := newPass(d.Manager.Get(), d.Log)
	if err != nil {
		d.Log.Error("pass setup failed", logx.Err(err))
		return
	}
	sum, err := p.Run(ctx)
	switch {
	case errors.Is(err, schedule.ErrNoEligibleSlots):
		d.Log.Info("no eligible slots", logx.String("run_id", sum.RunID))
	case err != nil && ctx.Err() != nil:
		d.Log.Info("pass interrupted", logx.String("run_id", sum.RunID))
	case err != nil:
		d.Log.Error("pass failed", logx.String("run_id", sum.RunID), logx.Err(err))
	}
}

func (d *Daemon) reloadLoop(ctx context.Context, last *config.Config, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts
			for drained := false; !drained; {
				select {
				case newer, more := <-sub:
					if !more {
						drained = true
					} else if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			d.apply(last, next)
			last = next
		}
	}
}

// apply pushes a committed config into the running daemon. Settings read
// per pass (reservation, mail, browser, telegram, contact) need no action:
// the next trigger picks them up.
func (d *Daemon) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		d.Log.Info("config reloaded (no changes)")
		return
	}

	if d.Logs != nil {
		d.Logs.Apply(newCfg.Logging.LogConfig())
	}
	if oldCfg.Daemon.Cron != newCfg.Daemon.Cron || oldCfg.Daemon.Timezone != newCfg.Daemon.Timezone {
		if strings.TrimSpace(newCfg.Daemon.Cron) == "" {
			d.Log.Warn("daemon.cron cleared; keeping previous schedule", logx.String("cron", d.spec))
		} else if err := d.reschedule(newCfg); err != nil {
			d.Log.Warn("invalid daemon schedule; keeping previous", logx.Err(err))
		} else {
			d.Log.Info("schedule updated", logx.String("cron", d.spec), logx.Time("next", d.Next()))
		}
	}
	if oldCfg.Daemon.WatchConfig != newCfg.Daemon.WatchConfig {
		d.Log.Warn("daemon.watch_config changed; restart required for it to take effect")
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	d.Log.Info("config reloaded", fields...)
}
