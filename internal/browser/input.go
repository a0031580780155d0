package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slotbot/internal/clock"
)

// InputStrategy decides how text is entered and how long to pause before
// picking a time slot. Paced entry looks less like a bot; Bulk is fast.
type InputStrategy interface {
	// Fill clears el and enters text.
	Fill(ctx context.Context, el Element, text string) error
	// BeforePick pauses before the date/time selection click.
	BeforePick(ctx context.Context) error
}

// Bulk enters text in one call with no pauses.
type Bulk struct{}

func (Bulk) Fill(ctx context.Context, el Element, text string) error {
	if err := el.Clear(ctx); err != nil {
		return err
	}
	return el.Type(ctx, text)
}

func (Bulk) BeforePick(context.Context) error { return nil }

// Paced types one character at a time with a random delay after each key.
type Paced struct {
	Clock  clock.Clock
	Jitter *clock.Jitter

	KeyMin, KeyMax     time.Duration
	ClickMin, ClickMax time.Duration
}

// NewPaced fills zero delays with 10-100ms per key and 100-900ms before a pick.
func NewPaced(c clock.Clock, j *clock.Jitter, keyMin, keyMax, clickMin, clickMax time.Duration) *Paced {
	if c == nil {
		c = clock.Real{}
	}
	if j == nil {
		j = clock.NewJitter(time.Now().UnixNano())
	}
	if keyMin <= 0 && keyMax <= 0 {
		keyMin, keyMax = 10*time.Millisecond, 100*time.Millisecond
	}
	if clickMin <= 0 && clickMax <= 0 {
		clickMin, clickMax = 100*time.Millisecond, 900*time.Millisecond
	}
	return &Paced{Clock: c, Jitter: j, KeyMin: keyMin, KeyMax: keyMax, ClickMin: clickMin, ClickMax: clickMax}
}

func (p *Paced) Fill(ctx context.Context, el Element, text string) error {
	if err := el.Clear(ctx); err != nil {
		return err
	}
	for _, r := range text {
		if err := el.Type(ctx, string(r)); err != nil {
			return err
		}
		if err := p.Clock.Sleep(ctx, p.Jitter.Between(p.KeyMin, p.KeyMax)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Paced) BeforePick(ctx context.Context) error {
	return p.Clock.Sleep(ctx, p.Jitter.Between(p.ClickMin, p.ClickMax))
}

// ParseStrategy maps "paced" or "bulk" to a strategy.
func ParseStrategy(name string, paced *Paced) (InputStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "paced":
		if paced == nil {
			paced = NewPaced(nil, nil, 0, 0, 0, 0)
		}
		return paced, nil
	case "bulk":
		return Bulk{}, nil
	default:
		return nil, fmt.Errorf("unknown input strategy %q", name)
	}
}
