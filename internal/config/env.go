package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names for secrets and personal data.
const (
	EnvName          = "NAME"
	EnvPhoneNumber   = "PHONE_NUMBER"
	EnvIMAPEmail     = "IMAP_EMAIL"
	EnvIMAPPassword  = "IMAP_PASSWORD"
	EnvIMAPServer    = "IMAP_SERVER"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChat  = "TELEGRAM_CHAT_ID"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overlays non-empty environment values onto cfg.
// lookup is normally os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				*dst = v
			}
		}
	}

	set(&cfg.Contact.Name, EnvName)
	set(&cfg.Contact.PhoneNumber, EnvPhoneNumber)
	// one address is both the mailbox login and the address typed into the form
	set(&cfg.Contact.Email, EnvIMAPEmail)
	set(&cfg.Mail.Username, EnvIMAPEmail)
	set(&cfg.Mail.Password, EnvIMAPPassword)
	set(&cfg.Mail.Server, EnvIMAPServer)
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Telegram.ChatID, EnvTelegramChat)
}
