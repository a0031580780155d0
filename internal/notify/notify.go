// Package notify delivers outcome messages and screenshots.
package notify

import (
	"context"
	"errors"

	"slotbot/pkg/logx"
)

// ErrDelivery wraps the last error once all send attempts are used up.
var ErrDelivery = errors.New("notification delivery failed")

type Notifier interface {
	SendText(ctx context.Context, text string) error
	SendImage(ctx context.Context, png []byte, caption string) error
}

// LogOnly writes texts to the log and drops images.
type LogOnly struct {
	Log logx.Logger
}

func (n LogOnly) SendText(_ context.Context, text string) error {
	n.Log.Info("notification", logx.String("text", text))
	return nil
}

func (n LogOnly) SendImage(_ context.Context, png []byte, caption string) error {
	n.Log.Debug("notification image dropped", logx.Int("bytes", len(png)), logx.String("caption", caption))
	return nil
}
