package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"slotbot/internal/clock"
	"slotbot/pkg/logx"
)

const telegramTextLimit = 4000

type TelegramConfig struct {
	Token    string
	ChatID   string // numeric id or "@channel"
	ThreadID int

	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	// Timeout bounds one HTTP call to the Bot API.
	Timeout time.Duration
}

// Sender is the subset of *tele.Bot used here.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// Telegram sends to one chat (and optional forum thread).
type Telegram struct {
	cfg     TelegramConfig
	sender  Sender
	to      tele.Recipient
	limiter *rate.Limiter
	clock   clock.Clock
	log     logx.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewTelegram builds an offline bot: nothing touches the network until the
// first send.
func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, err
	}
	return NewTelegramWithSender(cfg, b, log)
}

// NewTelegramWithSender is NewTelegram with an injected sender.
func NewTelegramWithSender(cfg TelegramConfig, s Sender, log logx.Logger) (*Telegram, error) {
	to, err := parseChat(cfg.ChatID)
	if err != nil {
		return nil, err
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return &Telegram{
		cfg:     cfg,
		sender:  s,
		to:      to,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		clock:   clock.Real{},
		log:     log.With(logx.String("comp", "notify.telegram")),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// SetClock replaces the clock used for retry backoff (tests).
func (t *Telegram) SetClock(c clock.Clock) { t.clock = c }

type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func parseChat(raw string) (tele.Recipient, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "@") && len(s) > 1:
		return chatRecipient(s), nil
	case s != "":
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return chatRecipient(s), nil
		}
	}
	return nil, fmt.Errorf("telegram chat id %q: want numeric id or @channel", raw)
}

func (t *Telegram) options() *tele.SendOptions {
	return &tele.SendOptions{ThreadID: t.cfg.ThreadID, DisableWebPagePreview: true}
}

func (t *Telegram) SendText(ctx context.Context, text string) error {
	for _, chunk := range splitTelegramText(text, telegramTextLimit) {
		if err := t.send(ctx, "text", func() error {
			_, err := t.sender.Send(t.to, chunk, t.options())
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) SendImage(ctx context.Context, png []byte, caption string) error {
	if len(png) == 0 {
		return fmt.Errorf("%w: empty image", ErrDelivery)
	}
	return t.send(ctx, "photo", func() error {
		// a fresh reader per attempt; the previous one was consumed
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(png)), Caption: caption}
		_, err := t.sender.Send(t.to, photo, t.options())
		return err
	})
}

// send runs fn under the rate limiter, retrying with backoff.
func (t *Telegram) send(ctx context.Context, kind string, fn func() error) error {
	maxAttempts := 1 + t.cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		t.log.Debug("telegram send failed",
			logx.String("kind", kind), logx.Err(err),
			logx.Int("attempt", attempt), logx.Int("max", maxAttempts))
		if attempt >= maxAttempts || !retryable(err) {
			break
		}
		if err := t.clock.Sleep(ctx, t.retryDelay(attempt, err)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrDelivery, kind, lastErr)
}

// retryable is false for errors a retry cannot fix (bad token, unknown chat).
func retryable(err error) bool {
	var te *tele.Error
	if errors.As(err, &te) {
		switch te.Code {
		case 400, 401, 403, 404:
			return false
		}
	}
	return true
}

// retryDelay is base*2^(attempt-1) capped at the max, with 0.7..1.3 jitter.
// A flood-control error waits at least as long as Telegram asks.
func (t *Telegram) retryDelay(attempt int, err error) time.Duration {
	base := t.cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := t.cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	t.rngMu.Lock()
	j := 0.7 + t.rng.Float64()*0.6
	t.rngMu.Unlock()
	d = time.Duration(float64(d) * j)
	if d > maxD {
		d = maxD
	}

	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		if wait := time.Duration(flood.RetryAfter) * time.Second; wait > d {
			d = wait
		}
	}
	return d
}

// splitTelegramText splits long text into chunks under limit runes,
// preferring newline boundaries.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// avoid tiny chunks
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
