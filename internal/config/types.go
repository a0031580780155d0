package config

// Config is the on-disk app configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "3s", "10m").
// Secrets and personal data are normally left empty here and supplied via
// environment variables (see ApplyEnv).
type Config struct {
	// ScheduleFile points at the facility schedule (JSON or YAML).
	// Relative paths are resolved against the config file's directory.
	ScheduleFile string `json:"schedule_file"`

	Reservation ReservationConfig `json:"reservation"`
	Contact     ContactConfig     `json:"contact"`
	Mail        MailConfig        `json:"mail"`
	Browser     BrowserConfig     `json:"browser"`
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Daemon      DaemonConfig      `json:"daemon"`
}

// ReservationConfig controls slot discovery, the start gate and the
// per-slot form flow.
//
// Defaults (when fields are omitted/zero):
//   - lookahead_days: 2 (only when omitted; 0 means today)
//   - target_time: "18:00:00"
//   - wait_for_target: false
//   - gate_poll_interval: "3s"
//   - group_size: 1
//   - max_retries: 3
//   - retry_backoff_min / retry_backoff_max: "1s" / "3s"
type ReservationConfig struct {
	LookaheadDays *int `json:"lookahead_days,omitempty"`
	// TargetTime is local wall-clock "HH:MM:SS" when registration opens.
	TargetTime string `json:"target_time"`
	// WaitForTarget blocks until TargetTime before the first slot.
	// Disable for manual runs.
	WaitForTarget    bool   `json:"wait_for_target"`
	GatePollInterval string `json:"gate_poll_interval,omitempty"`
	// Timezone is an IANA zone used for "today" and the gate. Empty = local.
	Timezone string `json:"timezone,omitempty"`

	GroupSize       int    `json:"group_size"`
	MaxRetries      int    `json:"max_retries"`
	RetryBackoffMin string `json:"retry_backoff_min,omitempty"`
	RetryBackoffMax string `json:"retry_backoff_max,omitempty"`
}

// ContactConfig holds the details typed into the reservation form.
// Env: NAME, PHONE_NUMBER, IMAP_EMAIL (email doubles as the mailbox login).
type ContactConfig struct {
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

// MailConfig controls confirmation code retrieval over IMAP.
// Env: IMAP_SERVER, IMAP_EMAIL, IMAP_PASSWORD.
type MailConfig struct {
	Server   string `json:"server,omitempty"`
	Port     int    `json:"port,omitempty"` // default 993
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
	Mailbox  string `json:"mailbox,omitempty"`  // default "INBOX"

	FromFilter    string `json:"from_filter,omitempty"`    // default "noreply@frontdesksuite.com"
	SubjectFilter string `json:"subject_filter,omitempty"` // default "Verify your email"

	PollInterval string `json:"poll_interval,omitempty"` // default "1s"
	// Timeout bounds the wait for a code. "0s" waits forever.
	Timeout     string `json:"timeout,omitempty"`      // default "10m"
	DialTimeout string `json:"dial_timeout,omitempty"` // default "15s"
}

// BrowserConfig controls the Chrome session. Headless defaults to true.
type BrowserConfig struct {
	Headless *bool  `json:"headless,omitempty"`
	ExecPath string `json:"exec_path,omitempty"`
	// ElementTimeout is how long a lookup waits for an element to appear.
	ElementTimeout string `json:"element_timeout,omitempty"` // default "5s"
	ActionTimeout  string `json:"action_timeout,omitempty"`  // default "30s"
	WindowWidth    int    `json:"window_width,omitempty"`
	WindowHeight   int    `json:"window_height,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`

	// Typing is "paced" (per-keystroke jitter) or "bulk".
	Typing        string `json:"typing,omitempty"`
	KeyDelayMin   string `json:"key_delay_min,omitempty"`   // default "10ms"
	KeyDelayMax   string `json:"key_delay_max,omitempty"`   // default "100ms"
	ClickDelayMin string `json:"click_delay_min,omitempty"` // default "100ms"
	ClickDelayMax string `json:"click_delay_max,omitempty"` // default "900ms"
}

// TelegramConfig controls outcome notifications.
// Env: TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // do not log
	// ChatID is numeric ("-100123") or a public channel ("@name").
	ChatID   string `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`

	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	Timeout       string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DaemonConfig controls `slotbot daemon`.
type DaemonConfig struct {
	// Cron accepts 5- or 6-field specs (seconds optional) and descriptors.
	Cron     string `json:"cron,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	// WatchConfig reloads the config file on change.
	WatchConfig bool `json:"watch_config"`
}

// Lookahead is the effective lookahead_days.
func (r ReservationConfig) Lookahead() int {
	if r.LookaheadDays == nil {
		return DefaultLookaheadDays
	}
	return *r.LookaheadDays
}

// IsHeadless is the effective headless setting.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}
