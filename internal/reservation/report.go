package reservation

import (
	"context"
	"time"

	"slotbot/internal/browser"
	"slotbot/internal/notify"
	"slotbot/internal/schedule"
	"slotbot/pkg/logx"
)

// Reporter emits the log line, text notification and screenshot for a
// terminal outcome. Each side effect is best-effort and independent.
type Reporter struct {
	Browser  browser.Browser
	Notifier notify.Notifier
	// MaxRetries is quoted in the RetryExhausted message.
	MaxRetries int
	// Timeout bounds the whole report. Default 1m.
	Timeout time.Duration
	Log     logx.Logger
}

// Report still runs when ctx is already cancelled, so an interrupted slot
// gets its notification.
func (r *Reporter) Report(ctx context.Context, slot schedule.EligibleSlot, out Outcome) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	text := Message(slot, out, r.MaxRetries)
	log := r.Log.With(
		logx.String("facility", slot.Facility),
		logx.String("starting_time", slot.StartingTime),
		logx.String("outcome", out.Kind.String()),
		logx.String("step", string(out.Step)),
	)
	switch out.Kind {
	case Success:
		log.Info(text)
	case Failure:
		log.Error(text, logx.Err(out.Err))
	default:
		log.Warn(text)
	}

	if r.Notifier == nil {
		return
	}
	if err := r.Notifier.SendText(ctx, text); err != nil {
		log.Warn("text notification failed", logx.Err(err))
	}

	if r.Browser == nil {
		return
	}
	png, err := r.Browser.Screenshot(ctx)
	if err != nil {
		log.Warn("screenshot failed", logx.Err(err))
		return
	}
	caption := slot.Facility + " " + slot.StartingTime + " " + out.Kind.String()
	if err := r.Notifier.SendImage(ctx, png, caption); err != nil {
		log.Warn("screenshot notification failed", logx.Err(err))
	}
}
