package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Default values applied by ApplyDefaults.
const (
	DefaultLookaheadDays = 2
	DefaultTargetTime    = "18:00:00"
	DefaultGroupSize     = 1
	DefaultMaxRetries    = 3
	DefaultIMAPPort      = 993
	DefaultMailbox       = "INBOX"
	DefaultFromFilter    = "noreply@frontdesksuite.com"
	DefaultSubject       = "Verify your email"
	DefaultTyping        = "paced"
)

// Error is a configuration error. It collects every problem found in one
// pass so the user can fix them together.
type Error struct {
	Path   string
	Issues []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	switch {
	case e.Err != nil && len(e.Issues) == 0:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(strings.Join(e.Issues, "; "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ApplyDefaults fills omitted fields. Safe to call more than once.
func ApplyDefaults(c *Config) {
	r := &c.Reservation
	if r.LookaheadDays == nil {
		days := DefaultLookaheadDays
		r.LookaheadDays = &days
	}
	if strings.TrimSpace(r.TargetTime) == "" {
		r.TargetTime = DefaultTargetTime
	}
	if r.GroupSize == 0 {
		r.GroupSize = DefaultGroupSize
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = DefaultMaxRetries
	}

	m := &c.Mail
	if m.Port == 0 {
		m.Port = DefaultIMAPPort
	}
	if strings.TrimSpace(m.Mailbox) == "" {
		m.Mailbox = DefaultMailbox
	}
	if strings.TrimSpace(m.FromFilter) == "" {
		m.FromFilter = DefaultFromFilter
	}
	if strings.TrimSpace(m.SubjectFilter) == "" {
		m.SubjectFilter = DefaultSubject
	}
	if strings.TrimSpace(m.Username) == "" {
		m.Username = c.Contact.Email
	}

	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if strings.TrimSpace(c.Browser.Typing) == "" {
		c.Browser.Typing = DefaultTyping
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Daemon.Timezone) == "" {
		c.Daemon.Timezone = c.Reservation.Timezone
	}
}

// Validate reports every invalid field as one *Error. It expects
// ApplyDefaults to have run.
func Validate(c *Config) error {
	var issues []string
	add := func(format string, args ...any) { issues = append(issues, fmt.Sprintf(format, args...)) }
	dur := func(path, raw string) time.Duration {
		d, err := ParseDurationField(path, raw)
		if err != nil {
			issues = append(issues, err.Error())
		}
		return d
	}

	if strings.TrimSpace(c.ScheduleFile) == "" {
		add("schedule_file is required")
	}

	r := c.Reservation
	if r.Lookahead() < 0 {
		add("reservation.lookahead_days must be >= 0")
	}
	if _, err := time.Parse("15:04:05", strings.TrimSpace(r.TargetTime)); err != nil {
		add("reservation.target_time %q must be HH:MM:SS", r.TargetTime)
	}
	if r.GroupSize < 1 {
		add("reservation.group_size must be >= 1")
	}
	if r.MaxRetries < 0 {
		add("reservation.max_retries must be >= 0")
	}
	dur("reservation.gate_poll_interval", r.GatePollInterval)
	bmin := dur("reservation.retry_backoff_min", r.RetryBackoffMin)
	bmax := dur("reservation.retry_backoff_max", r.RetryBackoffMax)
	if bmin > 0 && bmax > 0 && bmin > bmax {
		add("reservation.retry_backoff_min must be <= retry_backoff_max")
	}
	if _, err := LoadLocation(r.Timezone); err != nil {
		add("reservation.timezone: %v", err)
	}

	if strings.TrimSpace(c.Contact.Name) == "" {
		add("contact.name is required (or %s)", EnvName)
	}
	if strings.TrimSpace(c.Contact.PhoneNumber) == "" {
		add("contact.phone_number is required (or %s)", EnvPhoneNumber)
	}
	if strings.TrimSpace(c.Contact.Email) == "" {
		add("contact.email is required (or %s)", EnvIMAPEmail)
	}

	m := c.Mail
	if strings.TrimSpace(m.Server) == "" {
		add("mail.server is required (or %s)", EnvIMAPServer)
	}
	if strings.TrimSpace(m.Username) == "" {
		add("mail.username is required (or %s)", EnvIMAPEmail)
	}
	if m.Password == "" {
		add("mail.password is required (or %s)", EnvIMAPPassword)
	}
	if m.Port < 1 || m.Port > 65535 {
		add("mail.port must be in 1..65535")
	}
	dur("mail.poll_interval", m.PollInterval)
	dur("mail.timeout", m.Timeout)
	dur("mail.dial_timeout", m.DialTimeout)

	b := c.Browser
	switch strings.ToLower(strings.TrimSpace(b.Typing)) {
	case "paced", "bulk":
	default:
		add("browser.typing %q must be paced or bulk", b.Typing)
	}
	dur("browser.element_timeout", b.ElementTimeout)
	dur("browser.action_timeout", b.ActionTimeout)
	kmin, kmax := dur("browser.key_delay_min", b.KeyDelayMin), dur("browser.key_delay_max", b.KeyDelayMax)
	if kmin > 0 && kmax > 0 && kmin > kmax {
		add("browser.key_delay_min must be <= key_delay_max")
	}
	cmin, cmax := dur("browser.click_delay_min", b.ClickDelayMin), dur("browser.click_delay_max", b.ClickDelayMax)
	if cmin > 0 && cmax > 0 && cmin > cmax {
		add("browser.click_delay_min must be <= click_delay_max")
	}
	if b.WindowWidth < 0 || b.WindowHeight < 0 {
		add("browser.window_width/window_height must be >= 0")
	}

	t := c.Telegram
	if t.Enabled {
		if strings.TrimSpace(t.Token) == "" {
			add("telegram.token is required when enabled (or %s)", EnvTelegramToken)
		}
		if !validChatID(t.ChatID) {
			add("telegram.chat_id %q must be numeric or @channel (or %s)", t.ChatID, EnvTelegramChat)
		}
	}
	if t.RatePerSec < 0 || t.RetryMax < 0 || t.ThreadID < 0 {
		add("telegram.rate_per_sec/retry_max/thread_id must be >= 0")
	}
	dur("telegram.retry_base", t.RetryBase)
	dur("telegram.retry_max_delay", t.RetryMaxDelay)
	dur("telegram.timeout", t.Timeout)

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}

	if spec := strings.TrimSpace(c.Daemon.Cron); spec != "" {
		if _, err := CronParser().Parse(spec); err != nil {
			add("daemon.cron %q: %v", spec, err)
		}
	}
	if _, err := LoadLocation(c.Daemon.Timezone); err != nil {
		add("daemon.timezone: %v", err)
	}

	if len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

// CronParser accepts 5-field specs, an optional leading seconds field, and
// descriptors like "@daily".
func CronParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// LoadLocation resolves an IANA zone name; empty means time.Local.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func validChatID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "@") {
		return len(s) > 1
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
