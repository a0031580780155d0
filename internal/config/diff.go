package config

import (
	"sort"
	"strings"

	"slotbot/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets and personal data are only ever
// reported as "_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.ScheduleFile) != strings.TrimSpace(newCfg.ScheduleFile) {
		changed = append(changed, "schedule_file")
		attrs = append(attrs, logx.String("schedule_file", newCfg.ScheduleFile))
	}

	if !sameReservation(oldCfg.Reservation, newCfg.Reservation) {
		r := newCfg.Reservation
		changed = append(changed, "reservation")
		attrs = append(attrs,
			logx.Int("reservation.lookahead_days", r.Lookahead()),
			logx.String("reservation.target_time", r.TargetTime),
			logx.Bool("reservation.wait_for_target", r.WaitForTarget),
			logx.Int("reservation.max_retries", r.MaxRetries),
		)
	}

	// contact is personal data; never log values
	if oldCfg.Contact != newCfg.Contact {
		changed = append(changed, "contact")
	}

	if oldCfg.Mail != newCfg.Mail {
		m := newCfg.Mail
		changed = append(changed, "mail")
		attrs = append(attrs,
			logx.String("mail.server", m.Server),
			logx.Int("mail.port", m.Port),
			logx.String("mail.mailbox", m.Mailbox),
			logx.Bool("mail.password_set", m.Password != ""),
			logx.String("mail.timeout", m.Timeout),
		)
	}

	if !sameBrowser(oldCfg.Browser, newCfg.Browser) {
		changed = append(changed, "browser")
		attrs = append(attrs,
			logx.Bool("browser.headless", newCfg.Browser.IsHeadless()),
			logx.String("browser.typing", newCfg.Browser.Typing),
		)
	}

	if oldCfg.Telegram != newCfg.Telegram {
		t := newCfg.Telegram
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", t.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(t.Token) != ""),
			logx.Bool("telegram.chat_set", strings.TrimSpace(t.ChatID) != ""),
			logx.Int("telegram.rate_per_sec", t.RatePerSec),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Daemon != newCfg.Daemon {
		changed = append(changed, "daemon")
		attrs = append(attrs,
			logx.String("daemon.cron", newCfg.Daemon.Cron),
			logx.String("daemon.timezone", newCfg.Daemon.Timezone),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// LogConfig converts the logging section for logx.Service.
func (c LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

func sameReservation(a, b ReservationConfig) bool {
	la, lb := a.Lookahead(), b.Lookahead()
	a.LookaheadDays, b.LookaheadDays = nil, nil
	return la == lb && a == b
}

func sameBrowser(a, b BrowserConfig) bool {
	ha, hb := a.IsHeadless(), b.IsHeadless()
	a.Headless, b.Headless = nil, nil
	return ha == hb && a == b
}
