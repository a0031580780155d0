package app

import (
	"context"
	"strings"
	"time"

	"slotbot/internal/browser"
	"slotbot/internal/clock"
	"slotbot/internal/config"
	"slotbot/internal/gate"
	"slotbot/internal/mailbox"
	"slotbot/internal/notify"
	"slotbot/pkg/logx"
)

// BrowserFactory opens the run's browser session.
type BrowserFactory func(ctx context.Context) (browser.Browser, error)

func mapChromeOptions(cfg *config.Config, log logx.Logger) (browser.ChromeOptions, error) {
	b := cfg.Browser
	elementTimeout, err := config.ParseDurationOrDefault("browser.element_timeout", b.ElementTimeout, 5*time.Second)
	if err != nil {
		return browser.ChromeOptions{}, err
	}
	actionTimeout, err := config.ParseDurationOrDefault("browser.action_timeout", b.ActionTimeout, 30*time.Second)
	if err != nil {
		return browser.ChromeOptions{}, err
	}
	return browser.ChromeOptions{
		Headless:       b.IsHeadless(),
		ExecPath:       strings.TrimSpace(b.ExecPath),
		ElementTimeout: elementTimeout,
		ActionTimeout:  actionTimeout,
		WindowWidth:    b.WindowWidth,
		WindowHeight:   b.WindowHeight,
		UserAgent:      b.UserAgent,
		Log:            log,
	}, nil
}

// ChromeFactory starts a local Chrome per run.
func ChromeFactory(cfg *config.Config, log logx.Logger) (BrowserFactory, error) {
	opts, err := mapChromeOptions(cfg, log)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (browser.Browser, error) {
		return browser.NewChrome(ctx, opts)
	}, nil
}

func mapInputStrategy(cfg *config.Config, c clock.Clock, j *clock.Jitter) (browser.InputStrategy, error) {
	b := cfg.Browser
	keyMin, err := config.ParseDurationField("browser.key_delay_min", b.KeyDelayMin)
	if err != nil {
		return nil, err
	}
	keyMax, err := config.ParseDurationField("browser.key_delay_max", b.KeyDelayMax)
	if err != nil {
		return nil, err
	}
	clickMin, err := config.ParseDurationField("browser.click_delay_min", b.ClickDelayMin)
	if err != nil {
		return nil, err
	}
	clickMax, err := config.ParseDurationField("browser.click_delay_max", b.ClickDelayMax)
	if err != nil {
		return nil, err
	}
	return browser.ParseStrategy(b.Typing, browser.NewPaced(c, j, keyMin, keyMax, clickMin, clickMax))
}

func mapMailFilter(cfg *config.Config) mailbox.Filter {
	return mailbox.Filter{From: cfg.Mail.FromFilter, Subject: cfg.Mail.SubjectFilter}
}

// NewRetriever builds the IMAP retriever used by the poller and by
// `slotbot code`.
func NewRetriever(cfg *config.Config, log logx.Logger) (*mailbox.Retriever, error) {
	m := cfg.Mail
	dialTimeout, err := config.ParseDurationOrDefault("mail.dial_timeout", m.DialTimeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	log = log.With(logx.String("comp", "mailbox"))
	return &mailbox.Retriever{
		Dialer: &mailbox.IMAPDialer{
			Server:   strings.TrimSpace(m.Server),
			Port:     m.Port,
			Username: m.Username,
			Password: m.Password,
			Timeout:  dialTimeout,
			Log:      log,
		},
		Mailbox: m.Mailbox,
		Filter:  mapMailFilter(cfg),
		Log:     log,
	}, nil
}

func newPoller(cfg *config.Config, src mailbox.CodeSource, c clock.Clock, log logx.Logger) (*mailbox.Poller, error) {
	interval, err := config.ParseDurationOrDefault("mail.poll_interval", cfg.Mail.PollInterval, time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := config.ParseDurationAllowZero("mail.timeout", cfg.Mail.Timeout, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	return &mailbox.Poller{
		Source:   src,
		Interval: interval,
		Timeout:  timeout,
		Clock:    c,
		Log:      log.With(logx.String("comp", "mailbox")),
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (notify.TelegramConfig, error) {
	t := cfg.Telegram
	retryBase, err := config.ParseDurationOrDefault("telegram.retry_base", t.RetryBase, time.Second)
	if err != nil {
		return notify.TelegramConfig{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("telegram.retry_max_delay", t.RetryMaxDelay, 30*time.Second)
	if err != nil {
		return notify.TelegramConfig{}, err
	}
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", t.Timeout, 10*time.Second)
	if err != nil {
		return notify.TelegramConfig{}, err
	}
	retryMax := t.RetryMax
	if retryMax == 0 {
		retryMax = 3
	}
	return notify.TelegramConfig{
		Token:         t.Token,
		ChatID:        t.ChatID,
		ThreadID:      t.ThreadID,
		RatePerSec:    t.RatePerSec,
		RetryMax:      retryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
		Timeout:       timeout,
	}, nil
}

// NewNotifier returns the Telegram notifier, or a log-only one when
// Telegram is disabled.
func NewNotifier(cfg *config.Config, log logx.Logger) (notify.Notifier, error) {
	if !cfg.Telegram.Enabled {
		return notify.LogOnly{Log: log.With(logx.String("comp", "notify"))}, nil
	}
	tc, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	return notify.NewTelegram(tc, log)
}

func mapGate(cfg *config.Config, loc *time.Location, c clock.Clock, log logx.Logger) (gate.Gate, error) {
	target, err := gate.ParseTimeOfDay(cfg.Reservation.TargetTime)
	if err != nil {
		return gate.Gate{}, err
	}
	interval, err := config.ParseDurationOrDefault("reservation.gate_poll_interval", cfg.Reservation.GatePollInterval, gate.DefaultInterval)
	if err != nil {
		return gate.Gate{}, err
	}
	return gate.Gate{
		Target:   target,
		Location: loc,
		Interval: interval,
		Clock:    c,
		Log:      log.With(logx.String("comp", "gate")),
	}, nil
}
